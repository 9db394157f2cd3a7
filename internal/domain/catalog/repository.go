package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, description, category, price_type, points_cost, price_amount, inventory, is_active, created_at, updated_at`

// Repository defines product data access. The ...Tx variants operate inside a
// caller-owned transaction; the redemption flow uses them to hold a product
// row lock across its whole critical section.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// GetForUpdateTx re-fetches the product under a FOR UPDATE row lock.
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Product, error)

	// DecrementInventoryTx reduces inventory by one. The caller must hold the
	// row lock via GetForUpdateTx.
	DecrementInventoryTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates product repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, name, description, category, price_type, points_cost, price_amount, inventory, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Category,
		p.PriceType,
		p.PointsCost,
		p.PriceAmount,
		p.Inventory,
		p.IsActive,
	)
	if err != nil {
		return fmt.Errorf("product repository create: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("product repository get: %w", err)
	}
	return &p, nil
}

func (r *repository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Product, error) {
	var p Product
	err := tx.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: lock product row", ErrInternal)
	}
	return &p, nil
}

func (r *repository) DecrementInventoryTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET inventory = inventory - 1, updated_at = now()
		WHERE id = $1 AND inventory > 0
	`, id)
	if err != nil {
		return fmt.Errorf("%w: decrement inventory", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
