package catalog

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func validPointsProduct() *Product {
	return &Product{
		ID:         uuid.New(),
		Name:       "Sticker Pack",
		PriceType:  PriceTypePoints,
		PointsCost: sql.NullInt64{Int64: 250, Valid: true},
		Inventory:  10,
		IsActive:   true,
	}
}

func validMoneyProduct() *Product {
	return &Product{
		ID:          uuid.New(),
		Name:        "Gift Card",
		PriceType:   PriceTypeMoney,
		PriceAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("25.00"), Valid: true},
		Inventory:   10,
		IsActive:    true,
	}
}

func TestValidateAcceptsWellFormedProducts(t *testing.T) {
	if err := validPointsProduct().Validate(); err != nil {
		t.Fatalf("points product: %v", err)
	}
	if err := validMoneyProduct().Validate(); err != nil {
		t.Fatalf("money product: %v", err)
	}
}

func TestValidateRejectsMixedPricing(t *testing.T) {
	p := validPointsProduct()
	p.PriceAmount = decimal.NullDecimal{Decimal: decimal.RequireFromString("5.00"), Valid: true}
	if !errors.Is(p.Validate(), ErrInvalidPricing) {
		t.Fatal("points product with a money price must be rejected")
	}

	m := validMoneyProduct()
	m.PointsCost = sql.NullInt64{Int64: 100, Valid: true}
	if !errors.Is(m.Validate(), ErrInvalidPricing) {
		t.Fatal("money product with a points cost must be rejected")
	}
}

func TestValidateRejectsMissingOrNonPositivePrice(t *testing.T) {
	p := validPointsProduct()
	p.PointsCost = sql.NullInt64{}
	if !errors.Is(p.Validate(), ErrInvalidPricing) {
		t.Fatal("points product without points cost must be rejected")
	}

	p = validPointsProduct()
	p.PointsCost = sql.NullInt64{Int64: 0, Valid: true}
	if !errors.Is(p.Validate(), ErrInvalidPricing) {
		t.Fatal("zero points cost must be rejected")
	}

	m := validMoneyProduct()
	m.PriceAmount = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
	if !errors.Is(m.Validate(), ErrInvalidPricing) {
		t.Fatal("zero money price must be rejected")
	}

	unknown := validPointsProduct()
	unknown.PriceType = "subscription"
	if !errors.Is(unknown.Validate(), ErrInvalidPricing) {
		t.Fatal("unknown price type must be rejected")
	}
}
