package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quantumwager/wagerd/internal/domain"
)

// TradingStore implements domain.TradingStore using PostgreSQL transactions.
// Every method locks the market row first, so concurrent stakes, claims, and
// resolutions on the same market serialise instead of clobbering pool totals.
type TradingStore struct {
	pool *pgxpool.Pool
}

// NewTradingStore creates a new TradingStore backed by the given connection pool.
func NewTradingStore(pool *pgxpool.Pool) *TradingStore {
	return &TradingStore{pool: pool}
}

func lockMarket(ctx context.Context, tx pgx.Tx, marketID string) (domain.Market, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1 FOR UPDATE`, marketID)
	m, err := scanMarketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: lock market %s: %w", marketID, err)
	}
	return m, nil
}

// Stake applies one stake as a single transaction: position upsert, pool and
// volume move, user counters, and the STAKE ledger entry.
func (s *TradingStore) Stake(ctx context.Context, p domain.StakeParams) (domain.StakeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: begin stake: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := lockMarket(ctx, tx, p.MarketID)
	if err != nil {
		return domain.StakeResult{}, err
	}
	if m.Status != domain.MarketStatusActive || time.Now().After(m.EndTime) {
		return domain.StakeResult{}, domain.ErrMarketClosed
	}

	// New positions open with zero shares and price. Repeat stakes only
	// grow the staked amount; the share fields are written once at create
	// and never recomputed.
	row := tx.QueryRow(ctx, `
		INSERT INTO positions (
			id, user_id, market_id, side,
			amount_staked, shares_owned, average_price, stake_tx_hash,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 0, 0, $6, NOW(), NOW())
		ON CONFLICT (user_id, market_id, side) DO UPDATE SET
			amount_staked = positions.amount_staked + EXCLUDED.amount_staked,
			stake_tx_hash = EXCLUDED.stake_tx_hash,
			updated_at    = NOW()
		RETURNING `+positionSelectCols,
		uuid.NewString(), p.UserID, p.MarketID, string(p.Side),
		p.Amount, p.StakeTxHash,
	)
	pos, err := scanPositionRow(row)
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: upsert position: %w", err)
	}

	poolCol := "no_pool"
	if p.Side == domain.SideYes {
		poolCol = "yes_pool"
	}
	row = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE markets SET
			%s           = %s + $2,
			total_volume = total_volume + $2,
			updated_at   = NOW()
		WHERE id = $1
		RETURNING `+marketSelectCols, poolCol, poolCol),
		p.MarketID, p.Amount,
	)
	m, err = scanMarketRow(row)
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: move market pool: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET
			total_predictions = total_predictions + 1,
			total_volume      = total_volume + $2,
			last_active       = NOW(),
			updated_at        = NOW()
		WHERE id = $1`, p.UserID, p.Amount,
	); err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: bump user counters: %w", err)
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO transactions (
			id, user_id, market_id, position_id, type, amount, tx_hash, status, created_at
		) VALUES ($1, $2, $3, $4, 'STAKE', $5, $6, 'COMPLETED', NOW())
		RETURNING `+txSelectCols,
		uuid.NewString(), p.UserID, p.MarketID, pos.ID, p.Amount, p.StakeTxHash,
	)
	ledger, err := scanTransactionRow(row)
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: record stake: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: commit stake: %w", err)
	}
	return domain.StakeResult{Position: pos, Market: m, Transaction: ledger}, nil
}

// AttachPayout records the payout ledger entry and binds it to the position.
// The bind only succeeds while payout_tx_id is still null, so racing claims
// collapse to exactly one payout.
func (s *TradingStore) AttachPayout(ctx context.Context, positionID, userID, marketID string, amount decimal.Decimal) (domain.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: begin payout: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO transactions (
			id, user_id, market_id, position_id, type, amount, status, created_at
		) VALUES ($1, $2, $3, $4, 'PAYOUT', $5, 'COMPLETED', NOW())
		RETURNING `+txSelectCols,
		uuid.NewString(), userID, marketID, positionID, amount,
	)
	ledger, err := scanTransactionRow(row)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: record payout: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE positions SET
			payout_tx_id = $2,
			updated_at   = NOW()
		WHERE id = $1 AND payout_tx_id IS NULL`,
		positionID, ledger.ID,
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: bind payout to position %s: %w", positionID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Transaction{}, domain.ErrAlreadyClaimed
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET last_active = NOW(), updated_at = NOW() WHERE id = $1`, userID,
	); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: stamp user activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: commit payout: %w", err)
	}
	return ledger, nil
}

// Resolve sets the market outcome and settles every open position against it
// in the same transaction. Winners book stake * total / winning_pool - stake,
// losers book -stake, and user win statistics move with each settlement.
func (s *TradingStore) Resolve(ctx context.Context, marketID string, outcome bool) (domain.Market, []domain.Position, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("postgres: begin resolve: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.Market{}, nil, err
	}
	if m.Status != domain.MarketStatusActive {
		return domain.Market{}, nil, domain.ErrConflict
	}

	row := tx.QueryRow(ctx, `
		UPDATE markets SET
			status     = 'RESOLVED',
			outcome    = $2,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+marketSelectCols,
		marketID, outcome,
	)
	m, err = scanMarketRow(row)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("postgres: resolve market %s: %w", marketID, err)
	}

	rows, err := tx.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE market_id = $1 AND NOT settled
		 ORDER BY created_at ASC
		 FOR UPDATE`, marketID)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("postgres: lock positions: %w", err)
	}
	open, err := scanPositionRows(rows)
	rows.Close()
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}

	winningPool := m.NoPool
	if outcome {
		winningPool = m.YesPool
	}

	now := time.Now().UTC()
	settled := make([]domain.Position, 0, len(open))
	for _, p := range open {
		var pl decimal.Decimal
		won := p.Side.Wins(outcome)
		if won {
			// A winner implies winningPool >= stake > 0.
			gross := p.AmountStaked.Mul(m.TotalVolume).Div(winningPool)
			pl = gross.Sub(p.AmountStaked)
		} else {
			pl = p.AmountStaked.Neg()
		}

		row := tx.QueryRow(ctx, `
			UPDATE positions SET
				settled     = TRUE,
				settled_at  = $2,
				profit_loss = $3,
				updated_at  = NOW()
			WHERE id = $1
			RETURNING `+positionSelectCols,
			p.ID, now, pl,
		)
		sp, err := scanPositionRow(row)
		if err != nil {
			return domain.Market{}, nil, fmt.Errorf("postgres: settle position %s: %w", p.ID, err)
		}
		settled = append(settled, sp)

		correctDelta := 0
		if won {
			correctDelta = 1
		}
		if _, err := tx.Exec(ctx, `
			UPDATE users SET
				correct_predictions = correct_predictions + $2,
				win_rate = (correct_predictions + $2)::numeric
					/ NULLIF(total_predictions, 0),
				updated_at = NOW()
			WHERE id = $1`, p.UserID, correctDelta,
		); err != nil {
			return domain.Market{}, nil, fmt.Errorf("postgres: update user stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, nil, fmt.Errorf("postgres: commit resolve: %w", err)
	}
	return m, settled, nil
}

// Cancel marks a market CANCELLED. The positions check runs under the market
// lock so a concurrent stake cannot slip in between check and update.
func (s *TradingStore) Cancel(ctx context.Context, marketID string) (domain.Market, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := lockMarket(ctx, tx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Status != domain.MarketStatusActive && m.Status != domain.MarketStatusPending {
		return domain.Market{}, domain.ErrConflict
	}

	var n int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM positions WHERE market_id = $1`, marketID,
	).Scan(&n); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: count positions: %w", err)
	}
	if n > 0 {
		return domain.Market{}, domain.ErrConflict
	}

	row := tx.QueryRow(ctx, `
		UPDATE markets SET
			status     = 'CANCELLED',
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+marketSelectCols,
		marketID,
	)
	m, err = scanMarketRow(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: cancel market %s: %w", marketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: commit cancel: %w", err)
	}
	return m, nil
}
