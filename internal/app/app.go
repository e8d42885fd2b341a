// Package app provides the top-level application lifecycle for wagerd. It
// wires together all dependencies (stores, caches, blob storage, services,
// and notifications), builds the HTTP API server, and runs everything until
// the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantumwager/wagerd/internal/config"
	"github.com/quantumwager/wagerd/internal/server"
	"github.com/quantumwager/wagerd/internal/server/handler"
	"github.com/quantumwager/wagerd/internal/server/ws"
	"github.com/quantumwager/wagerd/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// context is cancelled.
const shutdownTimeout = 15 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	version string
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger, version string) *App {
	return &App{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "app")),
		version: version,
	}
}

// Run is the main entry point. It wires all dependencies, builds the API
// server, starts the serving goroutines, and blocks until the context is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("version", a.version),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	hub := ws.NewHub(a.logger)

	authSvc := service.NewAuthService(deps.UserStore, deps.Tokens, a.cfg.Auth.NonceTTL.Duration, a.logger)
	userSvc := service.NewUserService(deps.UserStore, deps.PositionStore, a.logger)
	marketSvc := service.NewMarketService(
		deps.MarketStore, deps.TradingStore, deps.PositionStore, deps.TransactionStore,
		deps.MarketCache, hub, deps.Notifier, a.logger,
	)
	tradingSvc := service.NewTradingService(
		deps.TradingStore, deps.PositionStore, deps.MarketStore, deps.TransactionStore,
		deps.MarketCache, hub, a.cfg.MinStake(), a.logger,
	)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.version, deps.Pingers),
		Auth:      handler.NewAuthHandler(authSvc, userSvc, a.logger),
		Markets:   handler.NewMarketHandler(marketSvc, a.logger),
		Positions: handler.NewPositionHandler(tradingSvc, a.logger),
		Users:     handler.NewUserHandler(userSvc, a.logger),
		Admin:     handler.NewAdminHandler(marketSvc, authSvc, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, deps.Tokens, deps.UserStore, deps.RateLimiter, hub, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	// Stop accepting requests once the context is cancelled.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration, a.cfg.Archive.Retention.Duration)
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
