package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantumwager/wagerd/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userSelectCols = `id, wallet_address, username, email,
	reputation_score, total_volume, win_rate, total_predictions,
	correct_predictions, is_verified, kyc_level,
	nonce, nonce_expires, last_active, created_at, updated_at`

func scanUserRow(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.WalletAddress, &u.Username, &u.Email,
		&u.ReputationScore, &u.TotalVolume, &u.WinRate, &u.TotalPredictions,
		&u.CorrectPredictions, &u.IsVerified, &u.KYCLevel,
		&u.Nonce, &u.NonceExpires, &u.LastActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (
			id, wallet_address, username, email,
			reputation_score, total_volume, win_rate, total_predictions,
			correct_predictions, is_verified, kyc_level,
			nonce, nonce_expires, last_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, NOW(), NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		u.ID, u.WalletAddress, u.Username, u.Email,
		u.ReputationScore, u.TotalVolume, u.WinRate, u.TotalPredictions,
		u.CorrectPredictions, u.IsVerified, u.KYCLevel,
		u.Nonce, u.NonceExpires, u.LastActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create user %s: %w", u.ID, err)
	}
	return nil
}

// GetByID retrieves a single user by ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE id = $1`, id)

	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// GetByWallet retrieves a single user by wallet address.
func (s *UserStore) GetByWallet(ctx context.Context, walletAddress string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userSelectCols+` FROM users WHERE wallet_address = $1`, walletAddress)

	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user by wallet: %w", err)
	}
	return u, nil
}

// SetChallenge stores a fresh authentication nonce for the user.
func (s *UserStore) SetChallenge(ctx context.Context, id, nonce string, expires time.Time) error {
	const query = `
		UPDATE users SET
			nonce         = $2,
			nonce_expires = $3,
			last_active   = NOW(),
			updated_at    = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, nonce, expires)
	if err != nil {
		return fmt.Errorf("postgres: set challenge for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClearChallenge wipes any pending nonce after a verification attempt.
func (s *UserStore) ClearChallenge(ctx context.Context, id string) error {
	const query = `
		UPDATE users SET
			nonce         = NULL,
			nonce_expires = NULL,
			last_active   = NOW(),
			updated_at    = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: clear challenge for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil fields of upd and returns the new row.
func (s *UserStore) UpdateProfile(ctx context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	const query = `
		UPDATE users SET
			username   = COALESCE($2, username),
			email      = COALESCE($3, email),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userSelectCols

	row := s.pool.QueryRow(ctx, query, id, upd.Username, upd.Email)
	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, domain.ErrAlreadyExists
		}
		return domain.User{}, fmt.Errorf("postgres: update user %s: %w", id, err)
	}
	return u, nil
}

// Leaderboard returns users ordered by the requested sort key, reputation
// when the key is unknown. The ORDER BY clause comes from a fixed map, never
// from caller input.
func (s *UserStore) Leaderboard(ctx context.Context, sort string, limit, offset int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 50
	}
	order, ok := map[string]string{
		domain.LeaderboardSortReputation: "reputation_score DESC, total_volume DESC",
		domain.LeaderboardSortVolume:     "total_volume DESC, win_rate DESC",
		domain.LeaderboardSortWinRate:    "win_rate DESC, total_predictions DESC",
	}[sort]
	if !ok {
		order = "reputation_score DESC, total_volume DESC"
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userSelectCols+` FROM users
		 WHERE total_predictions > 0
		 ORDER BY `+order+`, created_at ASC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
