package catalog

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceType determines whether a product is paid with points or money
type PriceType string

const (
	PriceTypePoints PriceType = "points"
	PriceTypeMoney  PriceType = "money"
)

// Product is a redeemable catalog item. Exactly one of PointsCost and
// PriceAmount is set, depending on PriceType.
type Product struct {
	ID          uuid.UUID           `db:"id"`
	Name        string              `db:"name"`
	Description string              `db:"description"`
	Category    string              `db:"category"`
	PriceType   PriceType           `db:"price_type"`
	PointsCost  sql.NullInt64       `db:"points_cost"`
	PriceAmount decimal.NullDecimal `db:"price_amount"`
	Inventory   int                 `db:"inventory"`
	IsActive    bool                `db:"is_active"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

// RequiresPoints returns true for points-priced products
func (p *Product) RequiresPoints() bool {
	return p.PriceType == PriceTypePoints
}

// RequiresMoney returns true for money-priced products
func (p *Product) RequiresMoney() bool {
	return p.PriceType == PriceTypeMoney
}

// Validate enforces the pricing invariant: a points product carries a
// positive points cost and no money price, a money product the reverse.
func (p *Product) Validate() error {
	switch p.PriceType {
	case PriceTypePoints:
		if !p.PointsCost.Valid || p.PointsCost.Int64 <= 0 {
			return ErrInvalidPricing
		}
		if p.PriceAmount.Valid {
			return ErrInvalidPricing
		}
	case PriceTypeMoney:
		if !p.PriceAmount.Valid || p.PriceAmount.Decimal.LessThanOrEqual(decimal.Zero) {
			return ErrInvalidPricing
		}
		if p.PointsCost.Valid {
			return ErrInvalidPricing
		}
	default:
		return ErrInvalidPricing
	}
	return nil
}
