package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rewardly/rewards-api/internal/domain/catalog"
	"github.com/rewardly/rewards-api/internal/domain/user"
	"github.com/rewardly/rewards-api/internal/domain/wallet"
)

// Notifier delivers a message to the user after a successful redemption.
// Delivery is best-effort and never affects the redemption outcome.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string)
}

// Service runs the redemption flow. The payment (points or wallet), the
// inventory decrement and the redemption record all commit in one database
// transaction, so a failure at any step leaves no partial state behind.
type Service struct {
	db       *sqlx.DB
	repo     Repository
	products catalog.Repository
	users    user.Repository
	wallet   *wallet.Service
	notifier Notifier
}

// NewService creates redemption service
func NewService(db *sqlx.DB, repo Repository, products catalog.Repository, users user.Repository, walletSvc *wallet.Service, notifier Notifier) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		products: products,
		users:    users,
		wallet:   walletSvc,
		notifier: notifier,
	}
}

// Redeem claims one unit of the product for the user. Availability is checked
// twice: an unlocked fast path rejects obviously dead requests without taking
// locks, then the product row is re-read FOR UPDATE inside the transaction so
// concurrent redemptions of the last unit cannot both succeed.
func (s *Service) Redeem(ctx context.Context, userID, productID uuid.UUID, notes string) (*Redemption, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, fmt.Errorf("%w: load product", ErrInternal)
	}
	if !p.IsActive || p.Inventory <= 0 {
		return nil, ErrProductUnavailable
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	p, err = s.products.GetForUpdateTx(ctx, tx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	if !p.IsActive || p.Inventory <= 0 {
		return nil, ErrProductUnavailable
	}

	red := &Redemption{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Status:    RedemptionCompleted,
		Notes:     notes,
	}

	switch {
	case p.RequiresPoints():
		cost := int(p.PointsCost.Int64)
		if err := s.users.DeductPointsTx(ctx, tx, userID, cost); err != nil {
			if errors.Is(err, user.ErrInsufficientPoints) {
				return nil, ErrInsufficientPoints
			}
			return nil, fmt.Errorf("%w: deduct points", ErrInternal)
		}
		red.PointsSpent = int64(cost)
		red.MoneySpent = decimal.Zero
		red.Currency = s.wallet.DefaultCurrency()

	case p.RequiresMoney():
		t, err := s.wallet.DebitTx(ctx, tx, userID, p.PriceAmount.Decimal,
			fmt.Sprintf("Redemption: %s", p.Name),
			wallet.Metadata{"product_id": productID.String()})
		if err != nil {
			if errors.Is(err, wallet.ErrInsufficientBalance) {
				return nil, ErrInsufficientFunds
			}
			return nil, fmt.Errorf("%w: debit wallet", ErrInternal)
		}
		// The charged amount comes from the ledger entry, not the product row
		red.MoneySpent = t.Amount.Neg()
		red.Currency = t.Currency

	default:
		return nil, ErrProductUnavailable
	}

	if err := s.products.DecrementInventoryTx(ctx, tx, productID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}

	if err := s.repo.CreateTx(ctx, tx, red); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("product_id", productID.String()).
		Str("redemption_id", red.ID.String()).
		Msg("product redeemed")

	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, redemptionMessage(p.Name, red))
	}

	return red, nil
}

// redemptionMessage phrases the confirmation after what was actually spent
func redemptionMessage(productName string, red *Redemption) string {
	if red.PointsSpent > 0 {
		return fmt.Sprintf("You redeemed %s for %d points.", productName, red.PointsSpent)
	}
	return fmt.Sprintf("You redeemed %s for %s %s.", productName, red.MoneySpent.StringFixed(2), red.Currency)
}

// History returns the user's redemptions, newest first
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Redemption, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
