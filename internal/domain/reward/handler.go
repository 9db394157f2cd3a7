package reward

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rewardly/rewards-api/internal/middleware"
	"github.com/rewardly/rewards-api/internal/pkg/response"
	"github.com/rewardly/rewards-api/internal/pkg/validator"
)

// Handler handles redemption HTTP requests
type Handler struct {
	svc *Service
}

// NewHandler creates redemption handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type redeemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Notes     string `json:"notes" validate:"omitempty,max=500"`
}

// Redeem handles POST /rewards/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		response.BadRequest(w, "invalid product id")
		return
	}

	red, err := h.svc.Redeem(r.Context(), userID, productID, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrProductUnavailable):
			response.Conflict(w, "product is not available")
		case errors.Is(err, ErrInsufficientPoints):
			response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_POINTS", "not enough points")
		case errors.Is(err, ErrInsufficientFunds):
			response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "not enough wallet funds")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, red)
}

// History handles GET /rewards/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	redemptions, err := h.svc.History(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, redemptions)
}

// Routes returns authenticated redemption routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/redeem", h.Redeem)
	r.Get("/history", h.History)
	return r
}
