// Package middleware contains the HTTP middleware chain: request logging,
// rate limiting, and bearer-token session auth.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/quantumwager/wagerd/internal/crypto"
	"github.com/quantumwager/wagerd/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// TokenVerifier validates a raw bearer token into a session.
type TokenVerifier interface {
	Verify(raw string) (crypto.Session, error)
}

// UserChecker reports whether the user referenced by a session still exists.
type UserChecker interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// Auth returns middleware that resolves the Authorization bearer token into a
// session and stores it on the request context. A token whose user no longer
// exists is rejected the same way as an expired one. Requests without a token
// pass through unauthenticated; handlers that need identity call SessionFrom.
func Auth(tokens TokenVerifier, users UserChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := tokens.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			if _, err := users.GetByID(r.Context(), session.UserID); err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the authenticated session on the context, if any.
func SessionFrom(ctx context.Context) (crypto.Session, bool) {
	s, ok := ctx.Value(sessionKey).(crypto.Session)
	return s, ok
}

// extractBearer pulls the token out of an Authorization: Bearer header.
func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
