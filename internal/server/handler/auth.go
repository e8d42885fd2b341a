package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantumwager/wagerd/internal/domain"
	"github.com/quantumwager/wagerd/internal/service"
)

// AuthHandler serves the wallet login flow and the caller's own profile.
type AuthHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth *service.AuthService, users *service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		users:  users,
		logger: logHandler(logger, "auth"),
	}
}

type nonceRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,min=32,max=64"`
}

// RequestNonce issues a login challenge, creating the account on first
// contact with an unseen wallet.
func (h *AuthHandler) RequestNonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ch, err := h.auth.RequestChallenge(r.Context(), req.WalletAddress)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	status := http.StatusOK
	if ch.NewUser {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"nonce":      ch.Nonce,
		"message":    ch.Message,
		"expires_at": ch.ExpiresAt,
		"new_user":   ch.NewUser,
	})
}

type verifyRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required"`
	Message       string `json:"message" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
}

// Verify checks the signed challenge and returns a session token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, user, err := h.auth.Verify(r.Context(), req.WalletAddress, req.Message, req.Signature)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  renderUser(user),
	})
}

// Logout invalidates any pending challenge for the caller.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	if err := h.auth.Logout(r.Context(), session.UserID); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Profile returns the caller's own account.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Profile(r.Context(), session.UserID)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderUser(user))
}

type updateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=32"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// UpdateProfile applies the caller's profile edit.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), session.UserID, domain.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderUser(user))
}
