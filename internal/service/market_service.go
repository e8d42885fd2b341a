package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantumwager/wagerd/internal/domain"
)

// Notifier is the slice of the notification dispatcher the market lifecycle
// needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MarketService handles the market catalogue and admin lifecycle operations.
type MarketService struct {
	markets   domain.MarketStore
	trading   domain.TradingStore
	positions domain.PositionStore
	txs       domain.TransactionStore
	cache     domain.MarketCache
	broadcast domain.Broadcaster
	notifier  Notifier
	logger    *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	trading domain.TradingStore,
	positions domain.PositionStore,
	txs domain.TransactionStore,
	cache domain.MarketCache,
	broadcast domain.Broadcaster,
	notifier Notifier,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:   markets,
		trading:   trading,
		positions: positions,
		txs:       txs,
		cache:     cache,
		broadcast: broadcast,
		notifier:  notifier,
		logger:    logger,
	}
}

// Get returns a market, serving from cache when the snapshot is fresh.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "market_service: cache read failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	m, err = s.markets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("market_service: get market %q: %w", id, err)
	}

	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache fill failed",
			slog.String("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return m, nil
}

// List returns markets matching the filter with the total match count.
func (s *MarketService) List(ctx context.Context, f domain.MarketFilter) ([]domain.Market, int64, error) {
	markets, total, err := s.markets.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service: list markets: %w", err)
	}
	return markets, total, nil
}

// Featured returns active markets flagged for the front page.
func (s *MarketService) Featured(ctx context.Context, limit int) ([]domain.Market, error) {
	markets, err := s.markets.ListFeatured(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: list featured: %w", err)
	}
	return markets, nil
}

// Trending returns active markets ranked by recent stake volume.
func (s *MarketService) Trending(ctx context.Context, limit int) ([]domain.Market, error) {
	markets, err := s.markets.ListTrending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: list trending: %w", err)
	}
	return markets, nil
}

// Categories aggregates market counts and volume per category.
func (s *MarketService) Categories(ctx context.Context) ([]domain.CategorySummary, error) {
	cats, err := s.markets.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list categories: %w", err)
	}
	return cats, nil
}

// Activity returns a market's recent ledger entries, newest first.
func (s *MarketService) Activity(ctx context.Context, marketID string, limit int) ([]domain.Transaction, error) {
	if _, err := s.markets.GetByID(ctx, marketID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("market_service: get market %q: %w", marketID, err)
	}

	txs, err := s.txs.ListByMarket(ctx, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: list activity for %q: %w", marketID, err)
	}
	return txs, nil
}

// CreateParams carries the admin-supplied fields for a new market.
type CreateParams struct {
	Question           string
	Description        string
	Category           string
	EndTime            time.Time
	ResolutionCriteria string
	Featured           bool
	CreatorID          string
}

// Create opens a new market.
func (s *MarketService) Create(ctx context.Context, p CreateParams) (domain.Market, error) {
	if strings.TrimSpace(p.Question) == "" {
		return domain.Market{}, fmt.Errorf("market_service: empty question: %w", domain.ErrInvalidInput)
	}
	if !p.EndTime.After(time.Now()) {
		return domain.Market{}, fmt.Errorf("market_service: end time in the past: %w", domain.ErrInvalidInput)
	}

	m := domain.Market{
		ID:                 uuid.NewString(),
		Question:           strings.TrimSpace(p.Question),
		Description:        p.Description,
		Category:           p.Category,
		Status:             domain.MarketStatusActive,
		EndTime:            p.EndTime,
		ResolutionCriteria: p.ResolutionCriteria,
		Featured:           p.Featured,
		YesPool:            decimal.Zero,
		NoPool:             decimal.Zero,
		TotalVolume:        decimal.Zero,
		CreatorID:          p.CreatorID,
	}

	if err := s.markets.Create(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create market: %w", err)
	}

	s.broadcast.Publish("market_created", map[string]any{
		"market_id": m.ID,
		"question":  m.Question,
		"category":  m.Category,
		"end_time":  m.EndTime,
	})

	if notifyErr := s.notifier.Notify(ctx, "market_created",
		"New market opened",
		fmt.Sprintf("%s (%s), closes %s", m.Question, m.Category, m.EndTime.Format(time.RFC3339)),
	); notifyErr != nil {
		s.logger.WarnContext(ctx, "market_service: notify failed",
			slog.String("market_id", m.ID),
			slog.String("error", notifyErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "market_service: market created",
		slog.String("market_id", m.ID),
		slog.String("question", m.Question),
	)

	return m, nil
}

// Update applies an admin edit and drops the cached snapshot.
func (s *MarketService) Update(ctx context.Context, id string, upd domain.MarketUpdate) (domain.Market, error) {
	if upd.EndTime != nil && !upd.EndTime.After(time.Now()) {
		return domain.Market{}, fmt.Errorf("market_service: end time in the past: %w", domain.ErrInvalidInput)
	}

	m, err := s.markets.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("market_service: update market %q: %w", id, err)
	}

	s.invalidate(ctx, id)
	return m, nil
}

// Resolve fixes the market outcome and settles every open position in one
// transaction, then fans the result out.
func (s *MarketService) Resolve(ctx context.Context, id string, outcome bool) (domain.Market, error) {
	m, settled, err := s.trading.Resolve(ctx, id, outcome)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: resolve market %q: %w", id, err)
	}

	s.invalidate(ctx, id)

	s.broadcast.Publish("market_resolved", map[string]any{
		"market_id": m.ID,
		"question":  m.Question,
		"outcome":   outcome,
		"positions": len(settled),
	})

	outcomeLabel := "NO"
	if outcome {
		outcomeLabel = "YES"
	}
	if notifyErr := s.notifier.Notify(ctx, "market_resolved",
		"Market resolved",
		fmt.Sprintf("%s resolved %s, %d positions settled", m.Question, outcomeLabel, len(settled)),
	); notifyErr != nil {
		s.logger.WarnContext(ctx, "market_service: notify failed",
			slog.String("market_id", m.ID),
			slog.String("error", notifyErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "market_service: market resolved",
		slog.String("market_id", m.ID),
		slog.Bool("outcome", outcome),
		slog.Int("positions_settled", len(settled)),
	)

	return m, nil
}

// Cancel withdraws a market that nobody has staked on yet.
func (s *MarketService) Cancel(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.trading.Cancel(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: cancel market %q: %w", id, err)
	}

	s.invalidate(ctx, id)

	s.broadcast.Publish("market_cancelled", map[string]any{
		"market_id": m.ID,
		"question":  m.Question,
	})

	s.logger.InfoContext(ctx, "market_service: market cancelled",
		slog.String("market_id", m.ID),
	)

	return m, nil
}

func (s *MarketService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache invalidation failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}
