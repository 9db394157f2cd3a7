package wallet

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIntegrationDB connects to the database named by TEST_DATABASE_URL and
// rebuilds the schema from scratch. The target database is disposable; the
// test is skipped when no database is reachable.
func newIntegrationDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../migrations/schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(`DROP SCHEMA public CASCADE; CREATE SCHEMA public`)
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func createTestAccount(t *testing.T, db *sqlx.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, password_hash, role, points)
		VALUES ($1, $2, $3, 'x', 'member', 0)
	`, id, "u_"+id.String()[:8], id.String()+"@example.com")
	require.NoError(t, err)
	return id
}

func TestConcurrentMutationsPreserveLedgerSum(t *testing.T) {
	db := newIntegrationDB(t)
	svc := NewService(NewRepository(db), nil, "EUR")
	ctx := context.Background()
	userID := createTestAccount(t, db)

	_, err := svc.CreatePendingDeposit(ctx, userID, decimal.RequireFromString("1000.00"), "cs_seed", "seed", nil)
	require.NoError(t, err)
	_, err = svc.CompleteDeposit(ctx, "cs_seed", "pi_seed")
	require.NoError(t, err)

	// A second pending deposit that every worker will race to settle
	_, err = svc.CreatePendingDeposit(ctx, userID, decimal.RequireFromString("50.00"), "cs_dup", "top-up", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := svc.Debit(ctx, userID, decimal.RequireFromString("3.75"), "debit storm", nil)
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := svc.Refund(ctx, userID, decimal.RequireFromString("1.25"), "refund storm", nil)
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := svc.CompleteDeposit(ctx, "cs_dup", "pi_dup")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	w, err := svc.GetWallet(ctx, userID)
	require.NoError(t, err)

	var ledgerSum decimal.Decimal
	require.NoError(t, db.Get(&ledgerSum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM wallet_transactions
		WHERE wallet_id = $1 AND status = 'completed'
	`, w.ID))
	assert.True(t, w.Balance.Equal(ledgerSum),
		"balance %s must equal the completed ledger sum %s", w.Balance, ledgerSum)

	// 1000.00 + 50.00 - 8*5*3.75 + 8*5*1.25
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("950.00")), "got balance %s", w.Balance)

	var depositRows int
	require.NoError(t, db.Get(&depositRows,
		`SELECT COUNT(*) FROM wallet_transactions WHERE external_reference = 'cs_dup'`))
	assert.Equal(t, 1, depositRows, "racing completions must not duplicate the deposit")
}

func TestConcurrentDebitsCannotOverdraw(t *testing.T) {
	db := newIntegrationDB(t)
	svc := NewService(NewRepository(db), nil, "EUR")
	ctx := context.Background()
	userID := createTestAccount(t, db)

	_, err := svc.CreatePendingDeposit(ctx, userID, decimal.RequireFromString("30.00"), "cs_small", "seed", nil)
	require.NoError(t, err)
	_, err = svc.CompleteDeposit(ctx, "cs_small", "pi_small")
	require.NoError(t, err)

	// Ten workers each try to take 10.00 out of a 30.00 balance
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, userID, decimal.RequireFromString("10.00"), "drain", nil)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded, "exactly three debits fit in the balance")

	w, err := svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero(), "got balance %s", w.Balance)
}
