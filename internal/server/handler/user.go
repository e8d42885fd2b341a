package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantumwager/wagerd/internal/service"
)

// UserHandler serves public profiles and the leaderboard.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logHandler(logger, "user"),
	}
}

// Leaderboard returns ranked users, by reputation unless ?sort says otherwise.
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	sort := r.URL.Query().Get("sort")
	users, err := h.users.Leaderboard(r.Context(), sort, opts.Limit, opts.Offset)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": renderLeaderboard(users, opts.Offset)})
}

// GetUser returns a user's public profile with their position summary.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	summary, err := h.users.Summary(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	out := map[string]any{
		"user": renderPublicUser(user),
		"summary": map[string]any{
			"open_positions":    summary.Open,
			"settled_positions": summary.Settled,
			"total_staked":      summary.TotalStaked.String(),
			"profit_loss":       summary.ProfitLoss.String(),
		},
	}
	writeJSON(w, http.StatusOK, out)
}
