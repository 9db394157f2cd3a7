package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines user data access
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetPoints returns the current points balance
	GetPoints(ctx context.Context, userID uuid.UUID) (int, error)

	// AddPoints atomically increases the points balance
	AddPoints(ctx context.Context, userID uuid.UUID, amount int) error

	// DeductPoints atomically decreases the points balance.
	// Returns ErrInsufficientPoints if the balance would go negative.
	DeductPoints(ctx context.Context, userID uuid.UUID, amount int) error

	// DeductPointsTx deducts points within an external transaction using a
	// FOR UPDATE row lock. The caller owns commit/rollback.
	DeductPointsTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, points)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Points,
	)
	if err != nil {
		return fmt.Errorf("user repository create: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, role, points, created_at, updated_at
		FROM users WHERE id = $1
	`
	var u User
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user repository get by id: %w", err)
	}
	return &u, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, role, points, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u User
	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user repository get by email: %w", err)
	}
	return &u, nil
}

func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, role, points, created_at, updated_at
		FROM users WHERE username = $1
	`
	var u User
	if err := r.db.GetContext(ctx, &u, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user repository get by username: %w", err)
	}
	return &u, nil
}

func (r *repository) GetPoints(ctx context.Context, userID uuid.UUID) (int, error) {
	var points int
	err := r.db.GetContext(ctx, &points, `SELECT points FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("user repository get points: %w", err)
	}
	return points, nil
}

func (r *repository) AddPoints(ctx context.Context, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET points = points + $2, updated_at = now()
		WHERE id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: add points", ErrInternal)
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

func (r *repository) DeductPoints(ctx context.Context, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	// Conditional update keeps the check and the write in one statement
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET points = points - $2, updated_at = now()
		WHERE id = $1 AND points >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: deduct points", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrInsufficientPoints
	}
	return nil
}

// DeductPointsTx deducts points inside a caller-owned transaction. The user
// row is locked FOR UPDATE so the read-check-write cannot interleave with
// other mutations of the same balance.
func (r *repository) DeductPointsTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	var points int
	err := tx.QueryRowContext(ctx, `SELECT points FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: lock user row", ErrInternal)
	}

	if points < amount {
		return ErrInsufficientPoints
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET points = points - $2, updated_at = now() WHERE id = $1`, userID, amount)
	if err != nil {
		return fmt.Errorf("%w: update points", ErrInternal)
	}
	return nil
}
