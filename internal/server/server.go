// Package server wires the REST routes, middleware chain, and WebSocket
// endpoint into one http.Server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quantumwager/wagerd/internal/domain"
	"github.com/quantumwager/wagerd/internal/server/handler"
	"github.com/quantumwager/wagerd/internal/server/middleware"
	"github.com/quantumwager/wagerd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Markets   *handler.MarketHandler
	Positions *handler.PositionHandler
	Users     *handler.UserHandler
	Admin     *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (CORS, logging, rate limit, session auth) applied.
func NewServer(cfg Config, handlers Handlers, tokens middleware.TokenVerifier, users middleware.UserChecker, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", handlers.Health.HealthCheck)

	// Wallet auth flow.
	mux.HandleFunc("POST /api/auth/nonce", handlers.Auth.RequestNonce)
	mux.HandleFunc("POST /api/auth/verify", handlers.Auth.Verify)
	mux.HandleFunc("POST /api/auth/logout", handlers.Auth.Logout)
	mux.HandleFunc("GET /api/auth/profile", handlers.Auth.Profile)
	mux.HandleFunc("PUT /api/auth/profile", handlers.Auth.UpdateProfile)

	// Market catalogue. Literal segments before the {id} wildcard.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/featured", handlers.Markets.ListFeatured)
	mux.HandleFunc("GET /api/markets/trending", handlers.Markets.ListTrending)
	mux.HandleFunc("GET /api/markets/categories", handlers.Markets.ListCategories)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/activity", handlers.Markets.MarketActivity)

	// Positions and claims.
	mux.HandleFunc("POST /api/positions", handlers.Positions.Stake)
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/positions/history", handlers.Positions.History)
	mux.HandleFunc("GET /api/positions/{id}", handlers.Positions.GetPosition)
	mux.HandleFunc("POST /api/positions/{id}/claim", handlers.Positions.Claim)
	mux.HandleFunc("GET /api/transactions", handlers.Positions.ListTransactions)

	// Public user profiles.
	mux.HandleFunc("GET /api/users/leaderboard", handlers.Users.Leaderboard)
	mux.HandleFunc("GET /api/users/{id}", handlers.Users.GetUser)

	// Market lifecycle (admin tier enforced in the handler).
	mux.HandleFunc("POST /api/admin/markets", handlers.Admin.CreateMarket)
	mux.HandleFunc("PUT /api/admin/markets/{id}", handlers.Admin.UpdateMarket)
	mux.HandleFunc("POST /api/admin/markets/{id}/resolve", handlers.Admin.ResolveMarket)
	mux.HandleFunc("DELETE /api/admin/markets/{id}", handlers.Admin.CancelMarket)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	h = middleware.Auth(tokens, users)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter)(h)
	}
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
