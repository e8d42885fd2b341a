package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantumwager/wagerd/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, user_id, market_id, side,
	amount_staked, shares_owned, average_price, stake_tx_hash,
	settled, settled_at, profit_loss, payout_tx_id,
	created_at, updated_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var side string
	err := row.Scan(
		&p.ID, &p.UserID, &p.MarketID, &side,
		&p.AmountStaked, &p.SharesOwned, &p.AveragePrice, &p.StakeTxHash,
		&p.Settled, &p.SettledAt, &p.ProfitLoss, &p.PayoutTxID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.PositionSide(side)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListByUser returns a user's positions, optionally filtered on settled.
func (s *PositionStore) ListByUser(ctx context.Context, userID string, settled *bool) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE user_id = $1`
	args := []any{userID}
	if settled != nil {
		query += " AND settled = $2"
		args = append(args, *settled)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

var positionSortCols = map[string]string{
	"settled_at":  "settled_at",
	"profit_loss": "profit_loss",
	"amount":      "amount_staked",
}

// ListSettled pages through a user's settled positions, newest settlement
// first unless overridden, with the total settled row count.
func (s *PositionStore) ListSettled(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM positions WHERE user_id = $1 AND settled`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count settled positions: %w", err)
	}

	sortCol, ok := positionSortCols[opts.SortBy]
	if !ok {
		sortCol = "settled_at"
	}
	dir := "ASC"
	if opts.SortDesc || opts.SortBy == "" {
		dir = "DESC"
	}

	query := `SELECT ` + positionSelectCols + ` FROM positions
		WHERE user_id = $1 AND settled` +
		fmt.Sprintf(" ORDER BY %s %s NULLS LAST", sortCol, dir)

	args := []any{userID}
	argIdx := 2
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list settled positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: scan settled positions: %w", err)
	}
	return positions, total, nil
}

// ListByMarket returns the most recently touched positions on a market.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string, limit int) ([]domain.Position, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE market_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list market positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan market positions: %w", err)
	}
	return positions, nil
}

// CountByMarket returns the number of positions on a market.
func (s *PositionStore) CountByMarket(ctx context.Context, marketID string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM positions WHERE market_id = $1`, marketID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count market positions: %w", err)
	}
	return n, nil
}
