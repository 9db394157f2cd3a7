package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rewardly/rewards-api/internal/middleware"
	"github.com/rewardly/rewards-api/internal/pkg/response"
	"github.com/rewardly/rewards-api/internal/pkg/validator"
)

// Handler handles user HTTP requests
type Handler struct {
	repo Repository
}

// NewHandler creates user handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

type profileResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

type earnPointsRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Amount int       `json:"amount" validate:"required,gt=0"`
}

// Me handles GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, profileResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Points:    u.Points,
		CreatedAt: u.CreatedAt,
	})
}

// EarnPoints handles POST /users/points/earn (admin grant)
func (h *Handler) EarnPoints(w http.ResponseWriter, r *http.Request) {
	var req earnPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.repo.AddPoints(r.Context(), req.UserID, req.Amount); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "user not found")
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		default:
			response.InternalError(w)
		}
		return
	}

	points, err := h.repo.GetPoints(r.Context(), req.UserID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"user_id": req.UserID, "points": points})
}

// Routes returns user routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/me", h.Me)
	r.With(middleware.RequireAdmin()).Post("/points/earn", h.EarnPoints)
	return r
}
