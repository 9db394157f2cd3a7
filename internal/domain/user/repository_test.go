package user

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestDeductPointsGuardsAgainstOverdraw(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	// The conditional WHERE clause matches no row when points < amount
	mock.ExpectExec(`UPDATE users\s+SET points = points - \$2, updated_at = now\(\)\s+WHERE id = \$1 AND points >= \$2`).
		WithArgs(userID, 500).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeductPoints(context.Background(), userID, 500)

	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductPointsSucceedsWithSufficientBalance(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectExec(`UPDATE users\s+SET points = points - \$2`).
		WithArgs(userID, 100).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeductPoints(context.Background(), userID, 100)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductPointsRejectsNonPositiveAmount(t *testing.T) {
	repo, mock := newMockRepo(t)

	assert.ErrorIs(t, repo.DeductPoints(context.Background(), uuid.New(), 0), ErrInvalidAmount)
	assert.ErrorIs(t, repo.DeductPoints(context.Background(), uuid.New(), -10), ErrInvalidAmount)
	assert.ErrorIs(t, repo.AddPoints(context.Background(), uuid.New(), 0), ErrInvalidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductPointsTxLocksRowBeforeUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT points FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(300))
	mock.ExpectExec(`UPDATE users SET points = points - \$2`).
		WithArgs(userID, 300).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	require.NoError(t, repo.DeductPointsTx(context.Background(), tx, userID, 300))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductPointsTxInsufficientUnderLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT points FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(299))
	mock.ExpectRollback()

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	err = repo.DeductPointsTx(context.Background(), tx, userID, 300)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
