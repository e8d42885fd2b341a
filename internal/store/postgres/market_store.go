package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantumwager/wagerd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, question, description, category, status,
	end_time, resolution_criteria, featured,
	yes_pool, no_pool, total_volume, outcome,
	creator_id, created_at, updated_at`

func scanMarketRow(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(
		&m.ID, &m.Question, &m.Description, &m.Category, &status,
		&m.EndTime, &m.ResolutionCriteria, &m.Featured,
		&m.YesPool, &m.NoPool, &m.TotalVolume, &m.Outcome,
		&m.CreatorID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

func scanMarketRows(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarketRow(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, question, description, category, status,
			end_time, resolution_criteria, featured,
			yes_pool, no_pool, total_volume, outcome,
			creator_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, NOW(), NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Question, m.Description, m.Category, string(m.Status),
		m.EndTime, m.ResolutionCriteria, m.Featured,
		m.YesPool, m.NoPool, m.TotalVolume, m.Outcome,
		m.CreatorID,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// GetByID retrieves a single market by ID.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id)

	m, err := scanMarketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

var marketSortCols = map[string]string{
	"created_at": "created_at",
	"volume":     "total_volume",
	"end_time":   "end_time",
}

// List returns markets matching the filter together with the total match count.
func (s *MarketStore) List(ctx context.Context, f domain.MarketFilter) ([]domain.Market, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	argIdx := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, f.Category)
		argIdx++
	}
	if f.Featured != nil {
		where += fmt.Sprintf(" AND featured = $%d", argIdx)
		args = append(args, *f.Featured)
		argIdx++
	}
	if f.CreatorID != "" {
		where += fmt.Sprintf(" AND creator_id = $%d", argIdx)
		args = append(args, f.CreatorID)
		argIdx++
	}

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count markets: %w", err)
	}

	sortCol, ok := marketSortCols[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}

	query := `SELECT ` + marketSelectCols + ` FROM markets` + where +
		fmt.Sprintf(" ORDER BY %s %s", sortCol, dir)

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: scan markets: %w", err)
	}
	return markets, total, nil
}

// ListFeatured returns active featured markets, most recent first.
func (s *MarketStore) ListFeatured(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets
		 WHERE featured AND status = 'ACTIVE'
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list featured markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan featured markets: %w", err)
	}
	return markets, nil
}

// ListTrending returns active markets with the highest recent stake volume.
// Recency is measured over the trailing 24 hours of ledger entries.
func (s *MarketStore) ListTrending(ctx context.Context, limit int) ([]domain.Market, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets m
		 WHERE m.status = 'ACTIVE'
		 ORDER BY (
			SELECT COALESCE(SUM(t.amount), 0) FROM transactions t
			WHERE t.market_id = m.id
			  AND t.type = 'STAKE'
			  AND t.created_at > NOW() - INTERVAL '24 hours'
		 ) DESC, m.total_volume DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trending markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trending markets: %w", err)
	}
	return markets, nil
}

// Categories aggregates market counts and total volume per category.
func (s *MarketStore) Categories(ctx context.Context) ([]domain.CategorySummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COALESCE(SUM(total_volume), 0)
		 FROM markets
		 GROUP BY category
		 ORDER BY SUM(total_volume) DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.CategorySummary
	for rows.Next() {
		var c domain.CategorySummary
		if err := rows.Scan(&c.Category, &c.MarketCount, &c.ActiveMarkets, &c.TotalVolume); err != nil {
			return nil, fmt.Errorf("postgres: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of upd and returns the new row.
func (s *MarketStore) Update(ctx context.Context, id string, upd domain.MarketUpdate) (domain.Market, error) {
	const query = `
		UPDATE markets SET
			question            = COALESCE($2, question),
			description         = COALESCE($3, description),
			category            = COALESCE($4, category),
			end_time            = COALESCE($5, end_time),
			resolution_criteria = COALESCE($6, resolution_criteria),
			featured            = COALESCE($7, featured),
			updated_at          = NOW()
		WHERE id = $1
		RETURNING ` + marketSelectCols

	row := s.pool.QueryRow(ctx, query, id,
		upd.Question, upd.Description, upd.Category,
		upd.EndTime, upd.ResolutionCriteria, upd.Featured,
	)
	m, err := scanMarketRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: update market %s: %w", id, err)
	}
	return m, nil
}
