package wallet

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypeRedeem  TransactionType = "redeem"
	TransactionTypeRefund  TransactionType = "refund"
)

// TransactionStatus is the lifecycle state of a ledger entry. Transitions only
// move pending -> completed; a completed transaction never changes again.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Metadata is an opaque key-value bag stored as JSONB
type Metadata map[string]string

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner, tolerating NULL columns
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type: %T", src)
	}
}

// Wallet is the per-user real-money balance. The balance column is only ever
// written together with a transaction row inside the same database
// transaction, so it always equals the sum of completed transaction amounts.
type Wallet struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Currency  string          `db:"currency" json:"currency"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger line. Debits carry a negative amount,
// credits a positive one. ExternalReference holds the payment provider
// session id for deposits and is unique when non-empty, which is what makes
// webhook replays idempotent.
type Transaction struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	WalletID          uuid.UUID         `db:"wallet_id" json:"wallet_id"`
	Type              TransactionType   `db:"type" json:"type"`
	Amount            decimal.Decimal   `db:"amount" json:"amount"`
	Currency          string            `db:"currency" json:"currency"`
	Description       string            `db:"description" json:"description"`
	Status            TransactionStatus `db:"status" json:"status"`
	ExternalReference string            `db:"external_reference" json:"external_reference,omitempty"`
	Metadata          Metadata          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
	CompletedAt       sql.NullTime      `db:"completed_at" json:"completed_at,omitempty"`
}

// IsCompleted returns true once the transaction reached its terminal state
func (t *Transaction) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// CheckoutSession is the hosted payment session handed back to the client
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}
