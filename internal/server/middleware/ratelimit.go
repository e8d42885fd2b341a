package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/quantumwager/wagerd/internal/domain"
)

// RateLimit returns middleware enforcing a per-client request budget via the
// provided domain.RateLimiter, keyed by client IP. Health probes and the
// WebSocket upgrade are exempt; a long-lived socket is one request, not many.
func RateLimit(limiter domain.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			// The limiter namespaces its own keys; pass the bare IP.
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			switch {
			case err != nil:
				// Fail open when the limiter backend is unreachable so an
				// outage there never takes the API down with it.
				next.ServeHTTP(w, r)
			case !allowed:
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// clientIP resolves the originating address, preferring standard proxy
// headers over the direct peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
