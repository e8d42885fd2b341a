package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantumwager/wagerd/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const txSelectCols = `id, user_id, market_id, position_id, type,
	amount, tx_hash, status, created_at`

func scanTransactionRow(row pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	var typ, status string
	err := row.Scan(
		&t.ID, &t.UserID, &t.MarketID, &t.PositionID, &typ,
		&t.Amount, &t.TxHash, &status, &t.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(status)
	return t, nil
}

func scanTransactionRows(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// GetByID retrieves a single ledger entry.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+txSelectCols+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return t, nil
}

// ListByMarket returns a market's latest ledger entries, newest first.
func (s *TransactionStore) ListByMarket(ctx context.Context, marketID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM transactions
		 WHERE market_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list market transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan market transactions: %w", err)
	}
	return txs, nil
}

// ListByUser returns a user's ledger entries with pagination, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC`
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
		return nil, fmt.Errorf("postgres: list user transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user transactions: %w", err)
	}
	return txs, nil
}

// ListCompletedBefore returns completed entries older than the cutoff,
// oldest first, for archival.
func (s *TransactionStore) ListCompletedBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM transactions
		 WHERE status = 'COMPLETED' AND created_at < $1
		 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan archivable transactions: %w", err)
	}
	return txs, nil
}

// DeleteBefore removes completed entries older than the cutoff and reports
// how many rows were pruned. Positions keep their payout_tx_id references;
// archived entries remain resolvable through the blob store.
func (s *TransactionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM transactions WHERE status = 'COMPLETED' AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete transactions before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
