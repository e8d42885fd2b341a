package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quantumwager/wagerd/internal/domain"
	"github.com/quantumwager/wagerd/internal/service"
)

// AdminHandler serves the market lifecycle operations. Every route requires
// an authenticated session whose account holds the admin KYC tier.
type AdminHandler struct {
	markets *service.MarketService
	auth    *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(markets *service.MarketService, auth *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		markets: markets,
		auth:    auth,
		logger:  logHandler(logger, "admin"),
	}
}

// requireAdmin loads the caller's account and checks the admin tier.
func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	session, ok := requireSession(w, r)
	if !ok {
		return domain.User{}, false
	}

	user, err := h.auth.Profile(r.Context(), session.UserID)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return domain.User{}, false
	}
	if !user.IsAdmin() {
		writeDomainError(w, h.logger, r, domain.ErrForbidden)
		return domain.User{}, false
	}
	return user, true
}

type createMarketRequest struct {
	Question           string    `json:"question" validate:"required,min=10,max=500"`
	Description        string    `json:"description" validate:"max=5000"`
	Category           string    `json:"category" validate:"required,max=64"`
	EndTime            time.Time `json:"end_time" validate:"required"`
	ResolutionCriteria string    `json:"resolution_criteria" validate:"max=2000"`
	Featured           bool      `json:"featured"`
}

// CreateMarket opens a new market.
func (h *AdminHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req createMarketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.markets.Create(r.Context(), service.CreateParams{
		Question:           req.Question,
		Description:        req.Description,
		Category:           req.Category,
		EndTime:            req.EndTime,
		ResolutionCriteria: req.ResolutionCriteria,
		Featured:           req.Featured,
		CreatorID:          admin.ID,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderMarket(m))
}

type updateMarketRequest struct {
	Question           *string    `json:"question" validate:"omitempty,min=10,max=500"`
	Description        *string    `json:"description" validate:"omitempty,max=5000"`
	Category           *string    `json:"category" validate:"omitempty,max=64"`
	EndTime            *time.Time `json:"end_time"`
	ResolutionCriteria *string    `json:"resolution_criteria" validate:"omitempty,max=2000"`
	Featured           *bool      `json:"featured"`
}

// UpdateMarket applies an admin edit to market metadata.
func (h *AdminHandler) UpdateMarket(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req updateMarketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.markets.Update(r.Context(), pathParam(r, "id"), domain.MarketUpdate{
		Question:           req.Question,
		Description:        req.Description,
		Category:           req.Category,
		EndTime:            req.EndTime,
		ResolutionCriteria: req.ResolutionCriteria,
		Featured:           req.Featured,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderMarket(m))
}

type resolveMarketRequest struct {
	Outcome *bool `json:"outcome" validate:"required"`
}

// ResolveMarket fixes the outcome and settles every open position.
func (h *AdminHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req resolveMarketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.markets.Resolve(r.Context(), pathParam(r, "id"), *req.Outcome)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderMarket(m))
}

// CancelMarket withdraws a market that has no positions.
func (h *AdminHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	m, err := h.markets.Cancel(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderMarket(m))
}
