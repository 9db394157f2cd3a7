package reward

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedemptionStatus is the lifecycle state of a redemption
type RedemptionStatus string

const (
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Redemption records a fulfilled product claim. The leg that matches the
// product's price type carries the spent amount, the other leg is stored as
// zero. MoneySpent is the amount actually charged, taken from the committed
// wallet transaction rather than re-read from the product.
type Redemption struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	UserID      uuid.UUID        `db:"user_id" json:"user_id"`
	ProductID   uuid.UUID        `db:"product_id" json:"product_id"`
	PointsSpent int64            `db:"points_spent" json:"points_spent"`
	MoneySpent  decimal.Decimal  `db:"money_spent" json:"money_spent"`
	Currency    string           `db:"currency" json:"currency"`
	Status      RedemptionStatus `db:"status" json:"status"`
	Notes       string           `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
