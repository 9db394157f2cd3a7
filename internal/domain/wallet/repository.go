package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const txColumns = `id, wallet_id, type, amount, currency, description, status, external_reference, metadata, created_at, updated_at, completed_at`

// TransactionFilter narrows ListTransactions results
type TransactionFilter struct {
	Type   TransactionType
	Status TransactionStatus
	Limit  int
	Offset int
}

// Repository owns all reads and writes of wallets and their transactions.
// Every mutation couples the balance update and the ledger insert/update in
// one database transaction, guarded by FOR UPDATE row locks.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates wallet repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ensureWallet(ctx context.Context, ex sqlx.ExtContext, userID uuid.UUID, currency string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, currency)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID, currency)
	if err != nil {
		return fmt.Errorf("%w: ensure wallet", ErrInternal)
	}
	return nil
}

// GetWallet returns the user's wallet, creating it with a zero balance in the
// given currency on first access. The insert-or-fetch is race-safe through
// the unique constraint on user_id.
func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error) {
	if err := r.ensureWallet(ctx, r.db, userID, currency); err != nil {
		return nil, err
	}

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT id, user_id, balance, currency, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: get wallet", ErrInternal)
	}
	return &w, nil
}

// lockWallet fetches the wallet row FOR UPDATE inside tx, creating it first
// when absent. The lock is held until the surrounding transaction ends.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, currency string) (*Wallet, error) {
	if err := r.ensureWallet(ctx, tx, userID, currency); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT id, user_id, balance, currency, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock wallet row", ErrInternal)
	}
	return &w, nil
}

func (r *Repository) lockWalletByID(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT id, user_id, balance, currency, created_at, updated_at
		FROM wallets WHERE id = $1 FOR UPDATE
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock wallet row", ErrInternal)
	}
	return &w, nil
}

// GetTransactionByReference returns the deposit keyed by an external reference
func (r *Repository) GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, `
		SELECT `+txColumns+`
		FROM wallet_transactions
		WHERE external_reference = $1 AND type = $2
	`, reference, TransactionTypeDeposit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: get transaction by reference", ErrInternal)
	}
	return &t, nil
}

// ListTransactions returns the wallet's history, newest first
func (r *Repository) ListTransactions(ctx context.Context, walletID uuid.UUID, filter TransactionFilter) ([]Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM wallet_transactions WHERE wallet_id = $1`
	args := []interface{}{walletID}
	idx := 2

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, filter.Type)
		idx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return transactions, nil
}

// CreatePendingDeposit records a deposit awaiting provider confirmation.
// Idempotent on the external reference: a replay returns the existing row
// unchanged. The unique index on external_reference enforces this even when
// two calls race past the initial lookup.
func (r *Repository) CreatePendingDeposit(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, reference, description string, metadata Metadata) (*Transaction, error) {
	existing, err := r.GetTransactionByReference(ctx, reference)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}

	w, err := r.GetWallet(ctx, userID, currency)
	if err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:                uuid.New(),
		WalletID:          w.ID,
		Type:              TransactionTypeDeposit,
		Amount:            amount,
		Currency:          w.Currency,
		Description:       description,
		Status:            StatusPending,
		ExternalReference: reference,
		Metadata:          metadata,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, currency, description, status, external_reference, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.WalletID, t.Type, t.Amount, t.Currency, t.Description, t.Status, t.ExternalReference, t.Metadata)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Lost the race against a concurrent create with the same reference
			return r.GetTransactionByReference(ctx, reference)
		}
		return nil, fmt.Errorf("%w: insert pending deposit", ErrInternal)
	}

	return r.GetTransactionByReference(ctx, reference)
}

// CompleteDeposit settles the pending deposit identified by reference,
// crediting the wallet and flipping the transaction to completed. Replays
// return the already-completed row without touching the balance.
//
// Lock ordering is transaction row first, wallet row second; debits and
// refunds lock only the wallet, so the two paths cannot deadlock.
func (r *Repository) CompleteDeposit(ctx context.Context, reference, paymentIntent string) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var t Transaction
	err = tx.GetContext(ctx, &t, `
		SELECT `+txColumns+`
		FROM wallet_transactions
		WHERE external_reference = $1 AND type = $2
		FOR UPDATE
	`, reference, TransactionTypeDeposit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: lock transaction row", ErrInternal)
	}

	if t.IsCompleted() {
		return &t, nil
	}

	w, err := r.lockWalletByID(ctx, tx, t.WalletID)
	if err != nil {
		return nil, err
	}

	newBalance := w.Balance.Add(t.Amount)
	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2
	`, newBalance, w.ID); err != nil {
		return nil, fmt.Errorf("%w: update balance", ErrInternal)
	}

	if t.Metadata == nil {
		t.Metadata = Metadata{}
	}
	if paymentIntent != "" {
		if _, ok := t.Metadata["payment_intent"]; !ok {
			t.Metadata["payment_intent"] = paymentIntent
		}
	}

	now := time.Now()
	t.Status = StatusCompleted
	t.CompletedAt = sql.NullTime{Time: now, Valid: true}
	if _, err := tx.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status = $1, metadata = $2, completed_at = $3, updated_at = now()
		WHERE id = $4
	`, t.Status, t.Metadata, now, t.ID); err != nil {
		return nil, fmt.Errorf("%w: complete transaction", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return &t, nil
}

// ApplyCompleted applies a signed amount to the wallet and inserts the paired
// completed transaction in its own database transaction.
func (r *Repository) ApplyCompleted(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, txType TransactionType, description string, metadata Metadata) (*Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	t, err := r.ApplyCompletedTx(ctx, tx, userID, currency, amount, txType, description, metadata)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return t, nil
}

// ApplyCompletedTx is the composable variant of ApplyCompleted: it runs
// inside a caller-owned transaction so a balance change can commit or roll
// back together with other writes (the redemption flow relies on this). The
// wallet row is locked FOR UPDATE for the remainder of tx.
func (r *Repository) ApplyCompletedTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, currency string, amount decimal.Decimal, txType TransactionType, description string, metadata Metadata) (*Transaction, error) {
	w, err := r.lockWallet(ctx, tx, userID, currency)
	if err != nil {
		return nil, err
	}

	newBalance := w.Balance.Add(amount)
	if newBalance.IsNegative() {
		return nil, ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2
	`, newBalance, w.ID); err != nil {
		return nil, fmt.Errorf("%w: update balance", ErrInternal)
	}

	now := time.Now()
	t := &Transaction{
		ID:          uuid.New(),
		WalletID:    w.ID,
		Type:        txType,
		Amount:      amount,
		Currency:    w.Currency,
		Description: description,
		Status:      StatusCompleted,
		Metadata:    metadata,
		CompletedAt: sql.NullTime{Time: now, Valid: true},
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, currency, description, status, external_reference, metadata, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9)
	`, t.ID, t.WalletID, t.Type, t.Amount, t.Currency, t.Description, t.Status, t.Metadata, now); err != nil {
		return nil, fmt.Errorf("%w: insert transaction", ErrInternal)
	}

	return t, nil
}
