package reward

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const redemptionColumns = `id, user_id, product_id, points_spent, money_spent, currency, status, notes, created_at`

// Repository defines redemption data access
type Repository interface {
	// CreateTx inserts the redemption inside the caller's transaction so it
	// commits together with the payment and inventory writes.
	CreateTx(ctx context.Context, tx *sqlx.Tx, r *Redemption) error

	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Redemption, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates redemption repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateTx(ctx context.Context, tx *sqlx.Tx, red *Redemption) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO redemptions (id, user_id, product_id, points_spent, money_spent, currency, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, red.ID, red.UserID, red.ProductID, red.PointsSpent, red.MoneySpent, red.Currency, red.Status, red.Notes)
	if err != nil {
		return fmt.Errorf("%w: insert redemption", ErrInternal)
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Redemption, error) {
	if limit <= 0 {
		limit = 20
	}

	redemptions := make([]Redemption, 0)
	err := r.db.SelectContext(ctx, &redemptions, `
		SELECT `+redemptionColumns+`
		FROM redemptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list redemptions", ErrInternal)
	}
	return redemptions, nil
}
