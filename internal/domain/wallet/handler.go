package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rewardly/rewards-api/internal/middleware"
	"github.com/rewardly/rewards-api/internal/pkg/response"
	"github.com/rewardly/rewards-api/internal/pkg/stripe"
	"github.com/rewardly/rewards-api/internal/pkg/validator"
)

// UserResolver checks that a webhook's user id maps to a real account
type UserResolver interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Handler handles wallet HTTP requests and the payment provider webhook
type Handler struct {
	svc           *Service
	users         UserResolver
	webhookSecret string
}

// NewHandler creates wallet handler
func NewHandler(svc *Service, users UserResolver, webhookSecret string) *Handler {
	return &Handler{svc: svc, users: users, webhookSecret: webhookSecret}
}

type depositRequest struct {
	Amount     string `json:"amount" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

type walletSummaryResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// Summary handles GET /wallet
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.GetWallet(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, walletSummaryResponse{
		Balance:  wallet.Balance.StringFixed(2),
		Currency: wallet.Currency,
	})
}

// Transactions handles GET /wallet/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	filter := TransactionFilter{
		Type:   TransactionType(r.URL.Query().Get("type")),
		Status: TransactionStatus(r.URL.Query().Get("status")),
	}

	transactions, err := h.svc.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}

// Deposit handles POST /wallet/deposit: creates a hosted checkout session
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(w, "amount must be a decimal number")
		return
	}

	session, err := h.svc.CreateCheckoutSession(r.Context(), userID, amount, req.SuccessURL, req.CancelURL, Metadata{"origin": "wallet_deposit"})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		case errors.Is(err, ErrProviderNotConfigured):
			response.Error(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "payment provider is not configured")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, map[string]string{
		"checkout_url": session.URL,
		"session_id":   session.SessionID,
	})
}

// stripeEvent mirrors the slice of the provider event payload the webhook
// cares about.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			PaymentIntent string            `json:"payment_intent"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Webhook handles POST /webhooks/stripe. Apart from signature failures, the
// handler always acknowledges with 200: a dropped deposit is reconciled
// out-of-band, a provider retry storm is not.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "unreadable payload")
		return
	}

	if h.webhookSecret == "" {
		log.Error().Msg("stripe webhook secret is not configured")
		response.InternalError(w)
		return
	}
	if !stripe.VerifySignature(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret, stripe.DefaultTolerance) {
		log.Warn().Msg("stripe webhook signature verification failed")
		response.BadRequest(w, "invalid signature")
		return
	}

	// A signed but unparseable payload is still acknowledged: returning an
	// error would only make the provider redeliver the same broken event.
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Warn().Err(err).Msg("stripe webhook payload parse failed")
		response.OK(w, map[string]string{"received": "true"})
		return
	}

	if event.Type == "checkout.session.completed" {
		h.handleCheckoutSessionCompleted(r.Context(), event)
	}

	response.OK(w, map[string]string{"received": "true"})
}

func (h *Handler) handleCheckoutSessionCompleted(ctx context.Context, event stripeEvent) {
	sessionID := event.Data.Object.ID
	paymentIntent := event.Data.Object.PaymentIntent
	rawUserID := event.Data.Object.Metadata["user_id"]

	if rawUserID == "" || sessionID == "" {
		log.Warn().Str("session_id", sessionID).Msg("stripe session without user metadata")
		return
	}

	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		log.Error().Str("user_id", rawUserID).Str("session_id", sessionID).Msg("stripe session carries malformed user id")
		return
	}

	exists, err := h.users.Exists(ctx, userID)
	if err != nil || !exists {
		log.Error().Err(err).Str("user_id", rawUserID).Str("session_id", sessionID).Msg("user not found for stripe session")
		return
	}

	if _, err := h.svc.CompleteDeposit(ctx, sessionID, paymentIntent); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("error completing deposit for stripe session")
	}
}

// Routes returns authenticated wallet routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Summary)
	r.Get("/transactions", h.Transactions)
	r.Post("/deposit", h.Deposit)
	return r
}

// WebhookRoutes returns the unauthenticated provider webhook routes
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/stripe", h.Webhook)
	return r
}
