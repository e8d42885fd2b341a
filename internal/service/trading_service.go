package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantumwager/wagerd/internal/domain"
)

// TradingService handles stakes, payout claims, and portfolio reads.
type TradingService struct {
	trading   domain.TradingStore
	positions domain.PositionStore
	markets   domain.MarketStore
	txs       domain.TransactionStore
	cache     domain.MarketCache
	broadcast domain.Broadcaster
	minStake  decimal.Decimal
	logger    *slog.Logger
}

// NewTradingService creates a TradingService with all required dependencies.
func NewTradingService(
	trading domain.TradingStore,
	positions domain.PositionStore,
	markets domain.MarketStore,
	txs domain.TransactionStore,
	cache domain.MarketCache,
	broadcast domain.Broadcaster,
	minStake decimal.Decimal,
	logger *slog.Logger,
) *TradingService {
	return &TradingService{
		trading:   trading,
		positions: positions,
		markets:   markets,
		txs:       txs,
		cache:     cache,
		broadcast: broadcast,
		minStake:  minStake,
		logger:    logger,
	}
}

// Stake places amount on one side of a market. The position upsert, pool
// move, user counters, and ledger entry land atomically or not at all.
func (s *TradingService) Stake(ctx context.Context, userID, marketID string, side domain.PositionSide, amount decimal.Decimal, stakeTxHash string) (domain.StakeResult, error) {
	if !side.Valid() {
		return domain.StakeResult{}, fmt.Errorf("trading_service: side %q: %w", side, domain.ErrInvalidInput)
	}
	if amount.LessThanOrEqual(decimal.Zero) || amount.LessThan(s.minStake) {
		return domain.StakeResult{}, fmt.Errorf("trading_service: stake amount %s below minimum %s: %w",
			amount, s.minStake, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(stakeTxHash) == "" {
		return domain.StakeResult{}, fmt.Errorf("trading_service: missing stake tx hash: %w", domain.ErrInvalidInput)
	}

	res, err := s.trading.Stake(ctx, domain.StakeParams{
		UserID:      userID,
		MarketID:    marketID,
		Side:        side,
		Amount:      amount,
		StakeTxHash: stakeTxHash,
	})
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("trading_service: stake on %q: %w", marketID, err)
	}

	if cacheErr := s.cache.Invalidate(ctx, marketID); cacheErr != nil {
		s.logger.WarnContext(ctx, "trading_service: cache invalidation failed",
			slog.String("market_id", marketID),
			slog.String("error", cacheErr.Error()),
		)
	}

	yes, no := res.Market.Odds()
	s.broadcast.Publish("odds_update", map[string]any{
		"market_id":    res.Market.ID,
		"yes_pool":     res.Market.YesPool,
		"no_pool":      res.Market.NoPool,
		"total_volume": res.Market.TotalVolume,
		"yes_odds":     yes,
		"no_odds":      no,
	})

	s.logger.InfoContext(ctx, "trading_service: stake placed",
		slog.String("user_id", userID),
		slog.String("market_id", marketID),
		slog.String("side", string(side)),
		slog.String("amount", amount.String()),
	)

	return res, nil
}

// Claim pays out a settled winning position. Checks run in a fixed order so
// callers always see the most specific failure: existence, ownership,
// settlement, prior claim, and finally whether the side won.
func (s *TradingService) Claim(ctx context.Context, userID, positionID string) (domain.Transaction, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("trading_service: get position %q: %w", positionID, err)
	}

	if pos.UserID != userID {
		return domain.Transaction{}, domain.ErrNotOwner
	}
	if !pos.Settled {
		return domain.Transaction{}, domain.ErrNotSettled
	}
	if pos.PayoutTxID != nil {
		return domain.Transaction{}, domain.ErrAlreadyClaimed
	}

	market, err := s.markets.GetByID(ctx, pos.MarketID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("trading_service: get market %q: %w", pos.MarketID, err)
	}
	if market.Outcome == nil || !pos.Side.Wins(*market.Outcome) {
		return domain.Transaction{}, domain.ErrNotWinning
	}

	// The payout entry records the settled profit. The stake itself was
	// never debited from the user, so returning it would double-pay.
	payout := decimal.Zero
	if pos.ProfitLoss != nil {
		payout = *pos.ProfitLoss
	}

	ledger, err := s.trading.AttachPayout(ctx, pos.ID, userID, pos.MarketID, payout)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			return domain.Transaction{}, domain.ErrAlreadyClaimed
		}
		return domain.Transaction{}, fmt.Errorf("trading_service: attach payout: %w", err)
	}

	s.logger.InfoContext(ctx, "trading_service: winnings claimed",
		slog.String("user_id", userID),
		slog.String("position_id", pos.ID),
		slog.String("payout", payout.String()),
	)

	return ledger, nil
}

// Positions returns the user's positions, optionally filtered on settled.
func (s *TradingService) Positions(ctx context.Context, userID string, settled *bool) ([]domain.Position, error) {
	positions, err := s.positions.ListByUser(ctx, userID, settled)
	if err != nil {
		return nil, fmt.Errorf("trading_service: list positions for %q: %w", userID, err)
	}
	return positions, nil
}

// History pages through the user's settled positions.
func (s *TradingService) History(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, int64, error) {
	positions, total, err := s.positions.ListSettled(ctx, userID, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("trading_service: list history for %q: %w", userID, err)
	}
	return positions, total, nil
}

// GetPosition returns one of the user's positions. Positions are private;
// someone else's ID yields ErrNotOwner.
func (s *TradingService) GetPosition(ctx context.Context, userID, positionID string) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("trading_service: get position %q: %w", positionID, err)
	}
	if pos.UserID != userID {
		return domain.Position{}, domain.ErrNotOwner
	}
	return pos, nil
}

// Transactions lists the user's ledger entries.
func (s *TradingService) Transactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	txs, err := s.txs.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("trading_service: list transactions for %q: %w", userID, err)
	}
	return txs, nil
}
