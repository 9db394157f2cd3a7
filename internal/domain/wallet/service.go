package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rewardly/rewards-api/internal/pkg/stripe"
)

// CheckoutProvider creates hosted payment sessions with the external
// payment processor.
type CheckoutProvider interface {
	IsConfigured() bool
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutSessionRequest) (*stripe.CheckoutSession, error)
}

// Service owns all wallet balance mutations. Monetary amounts pass through
// quantize exactly once before they are compared or persisted.
type Service struct {
	repo            *Repository
	provider        CheckoutProvider
	defaultCurrency string
}

// NewService creates wallet service
func NewService(repo *Repository, provider CheckoutProvider, defaultCurrency string) *Service {
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}
	return &Service{repo: repo, provider: provider, defaultCurrency: defaultCurrency}
}

// DefaultCurrency returns the currency new wallets are created with
func (s *Service) DefaultCurrency() string {
	return s.defaultCurrency
}

// quantize normalizes an amount to 2 decimal places, rounding half up.
// This is the single normalization point for money in the system.
func quantize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// GetWallet returns the user's wallet, lazily creating it with a zero
// balance in the configured default currency.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.GetWallet(ctx, userID, s.defaultCurrency)
}

// ListTransactions returns the user's wallet history, newest first
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]Transaction, error) {
	w, err := s.repo.GetWallet(ctx, userID, s.defaultCurrency)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, w.ID, filter)
}

// CreatePendingDeposit records a deposit keyed by the provider session id.
// Calling it again with the same session id returns the existing row.
func (s *Service) CreatePendingDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, sessionID, description string, metadata Metadata) (*Transaction, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidReference
	}
	amount = quantize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	t, err := s.repo.CreatePendingDeposit(ctx, userID, s.defaultCurrency, amount, sessionID, description, metadata)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", sessionID).
		Str("amount", amount.StringFixed(2)).
		Msg("pending deposit recorded")
	return t, nil
}

// CompleteDeposit settles the pending deposit for a session id and credits
// the wallet. Safe against duplicate webhook delivery: a second call returns
// the settled transaction without crediting again.
func (s *Service) CompleteDeposit(ctx context.Context, sessionID, paymentIntent string) (*Transaction, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidReference
	}

	t, err := s.repo.CompleteDeposit(ctx, sessionID, paymentIntent)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("session_id", sessionID).
		Str("amount", t.Amount.StringFixed(2)).
		Msg("deposit completed")
	return t, nil
}

// Debit withdraws amount from the wallet, failing with
// ErrInsufficientBalance when the balance can't cover it. The resulting
// transaction carries a negative amount.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, metadata Metadata) (*Transaction, error) {
	amount = quantize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	t, err := s.repo.ApplyCompleted(ctx, userID, s.defaultCurrency, amount.Neg(), TransactionTypeRedeem, description, metadata)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("wallet debit applied")
	return t, nil
}

// DebitTx is Debit composed into a caller-owned database transaction, so the
// debit commits or rolls back together with the caller's other writes.
func (s *Service) DebitTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, description string, metadata Metadata) (*Transaction, error) {
	amount = quantize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	return s.repo.ApplyCompletedTx(ctx, tx, userID, s.defaultCurrency, amount.Neg(), TransactionTypeRedeem, description, metadata)
}

// Refund credits amount back to the wallet
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, metadata Metadata) (*Transaction, error) {
	amount = quantize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	t, err := s.repo.ApplyCompleted(ctx, userID, s.defaultCurrency, amount, TransactionTypeRefund, description, metadata)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("wallet refund applied")
	return t, nil
}

// CreateCheckoutSession asks the payment provider for a hosted payment page
// and records the matching pending deposit so the webhook can settle it. The
// user id travels in the session metadata for the same reason.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, successURL, cancelURL string, metadata Metadata) (*CheckoutSession, error) {
	amount = quantize(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if s.provider == nil || !s.provider.IsConfigured() {
		return nil, ErrProviderNotConfigured
	}

	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if metadata == nil {
		metadata = Metadata{}
	}
	metadata["user_id"] = userID.String()

	description := "Wallet top-up"
	session, err := s.provider.CreateCheckoutSession(ctx, stripe.CheckoutSessionRequest{
		AmountMinor: amount.Shift(2).IntPart(),
		Currency:    w.Currency,
		Description: description,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata:    metadata,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("checkout session creation failed")
		return nil, fmt.Errorf("%w: create checkout session", ErrInternal)
	}

	if _, err := s.CreatePendingDeposit(ctx, userID, amount, session.ID, description, metadata); err != nil {
		return nil, err
	}

	return &CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}
