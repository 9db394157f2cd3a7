package wallet

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewardly/rewards-api/internal/pkg/stripe"
)

type fakeProvider struct {
	configured bool
	lastReq    *stripe.CheckoutSessionRequest
	session    *stripe.CheckoutSession
	err        error
}

func (f *fakeProvider) IsConfigured() bool { return f.configured }

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, req stripe.CheckoutSessionRequest) (*stripe.CheckoutSession, error) {
	f.lastReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func newMockService(t *testing.T, provider CheckoutProvider) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))
	return NewService(repo, provider, "EUR"), mock
}

func TestQuantizeRoundsHalfUpToCents(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"100.005", "100.01"},
		{"100.004", "100.00"},
		{"2.499", "2.50"},
		{"10", "10.00"},
		{"0.125", "0.13"},
	}

	for _, tc := range cases {
		got := quantize(decimal.RequireFromString(tc.in))
		if got.StringFixed(2) != tc.want {
			t.Fatalf("quantize(%s) = %s, want %s", tc.in, got.StringFixed(2), tc.want)
		}
	}
}

func TestCreatePendingDepositRejectsNonPositiveAmount(t *testing.T) {
	svc, mock := newMockService(t, &fakeProvider{})

	for _, amount := range []string{"0", "-5.00", "0.004"} {
		_, err := svc.CreatePendingDeposit(context.Background(), uuid.New(),
			decimal.RequireFromString(amount), "cs_x", "top-up", nil)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}

	// Validation happens before any database work
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingDepositRequiresReference(t *testing.T) {
	svc, _ := newMockService(t, &fakeProvider{})

	_, err := svc.CreatePendingDeposit(context.Background(), uuid.New(),
		decimal.RequireFromString("10.00"), "   ", "top-up", nil)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestCompleteDepositRequiresReference(t *testing.T) {
	svc, _ := newMockService(t, &fakeProvider{})

	_, err := svc.CompleteDeposit(context.Background(), "", "pi_1")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	svc, mock := newMockService(t, &fakeProvider{})

	_, err := svc.Debit(context.Background(), uuid.New(), decimal.Zero, "redemption", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Refund(context.Background(), uuid.New(), decimal.RequireFromString("-1"), "refund", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCheckoutSessionWithoutProvider(t *testing.T) {
	svc, _ := newMockService(t, &fakeProvider{configured: false})

	_, err := svc.CreateCheckoutSession(context.Background(), uuid.New(),
		decimal.RequireFromString("10.00"), "https://app/success", "https://app/cancel", nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestCreateCheckoutSessionSendsMinorUnitsAndMetadata(t *testing.T) {
	provider := &fakeProvider{
		configured: true,
		session:    &stripe.CheckoutSession{ID: "cs_new", URL: "https://pay.example/cs_new", Status: "open"},
	}
	svc, mock := newMockService(t, provider)

	userID := uuid.New()
	walletID := uuid.New()

	// GetWallet for currency
	mock.ExpectExec(`INSERT INTO wallets`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM wallets WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(walletRows(&Wallet{ID: walletID, UserID: userID, Balance: decimal.Zero, Currency: "EUR"}))

	// CreatePendingDeposit: lookup miss, ensure wallet, insert, refetch
	mock.ExpectQuery(`FROM wallet_transactions\s+WHERE external_reference = \$1 AND type = \$2`).
		WithArgs("cs_new", TransactionTypeDeposit).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO wallets`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM wallets WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(walletRows(&Wallet{ID: walletID, UserID: userID, Balance: decimal.Zero, Currency: "EUR"}))
	mock.ExpectExec(`INSERT INTO wallet_transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM wallet_transactions\s+WHERE external_reference = \$1 AND type = \$2`).
		WithArgs("cs_new", TransactionTypeDeposit).
		WillReturnRows(transactionRows(&Transaction{
			ID: uuid.New(), WalletID: walletID, Type: TransactionTypeDeposit,
			Amount: decimal.RequireFromString("10.01"), Currency: "EUR",
			Status: StatusPending, ExternalReference: "cs_new",
		}))

	session, err := svc.CreateCheckoutSession(context.Background(), userID,
		decimal.RequireFromString("10.005"), "https://app/success", "https://app/cancel", nil)

	require.NoError(t, err)
	assert.Equal(t, "cs_new", session.SessionID)
	assert.Equal(t, "https://pay.example/cs_new", session.URL)

	require.NotNil(t, provider.lastReq)
	assert.Equal(t, int64(1001), provider.lastReq.AmountMinor, "10.005 rounds half-up to 10.01 = 1001 cents")
	assert.Equal(t, "EUR", provider.lastReq.Currency)
	assert.Equal(t, userID.String(), provider.lastReq.Metadata["user_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCheckoutSessionProviderFailure(t *testing.T) {
	provider := &fakeProvider{configured: true, err: errors.New("stripe is down")}
	svc, mock := newMockService(t, provider)

	userID := uuid.New()
	mock.ExpectExec(`INSERT INTO wallets`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM wallets WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(walletRows(&Wallet{ID: uuid.New(), UserID: userID, Balance: decimal.Zero, Currency: "EUR"}))

	_, err := svc.CreateCheckoutSession(context.Background(), userID,
		decimal.RequireFromString("10.00"), "https://app/success", "https://app/cancel", nil)

	assert.ErrorIs(t, err, ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
