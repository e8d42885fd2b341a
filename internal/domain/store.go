package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and ordering for list queries.
type ListOpts struct {
	Limit    int
	Offset   int
	SortBy   string
	SortDesc bool
}

// UserStore persists platform accounts.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByWallet(ctx context.Context, walletAddress string) (User, error)
	// SetChallenge stores a new nonce and expiry and stamps last_active.
	SetChallenge(ctx context.Context, id, nonce string, expires time.Time) error
	// ClearChallenge removes any pending nonce and stamps last_active.
	ClearChallenge(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id string, upd UserUpdate) (User, error)
	// Leaderboard returns users ordered by the given sort key.
	Leaderboard(ctx context.Context, sort string, limit, offset int) ([]User, error)
}

// Leaderboard sort keys accepted by UserStore.Leaderboard.
const (
	LeaderboardSortReputation = "reputation"
	LeaderboardSortVolume     = "volume"
	LeaderboardSortWinRate    = "win_rate"
)

// MarketStore persists market metadata and read paths. Writes that must move
// multiple rows atomically (stakes, resolution, cancellation) live on
// TradingStore instead.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, f MarketFilter) ([]Market, int64, error)
	ListFeatured(ctx context.Context, limit int) ([]Market, error)
	ListTrending(ctx context.Context, limit int) ([]Market, error)
	Categories(ctx context.Context) ([]CategorySummary, error)
	Update(ctx context.Context, id string, upd MarketUpdate) (Market, error)
}

// PositionStore reads positions.
type PositionStore interface {
	GetByID(ctx context.Context, id string) (Position, error)
	// ListByUser returns a user's positions, optionally filtered on the
	// settled flag (nil matches both).
	ListByUser(ctx context.Context, userID string, settled *bool) ([]Position, error)
	// ListSettled pages through settled positions with the total row count.
	ListSettled(ctx context.Context, userID string, opts ListOpts) ([]Position, int64, error)
	ListByMarket(ctx context.Context, marketID string, limit int) ([]Position, error)
	CountByMarket(ctx context.Context, marketID string) (int64, error)
}

// TransactionStore reads the immutable event ledger. Entries are written by
// TradingStore as part of the stake and claim units.
type TransactionStore interface {
	GetByID(ctx context.Context, id string) (Transaction, error)
	ListByMarket(ctx context.Context, marketID string, limit int) ([]Transaction, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Transaction, error)
	// ListCompletedBefore and DeleteBefore support ledger archival.
	ListCompletedBefore(ctx context.Context, before time.Time) ([]Transaction, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// StakeParams describes one stake event.
type StakeParams struct {
	UserID      string
	MarketID    string
	Side        PositionSide
	Amount      decimal.Decimal
	StakeTxHash string
}

// StakeResult is the state written by a successful stake.
type StakeResult struct {
	Position    Position
	Market      Market
	Transaction Transaction
}

// TradingStore executes the multi-row units that must be atomic. Each method
// runs in a single datastore transaction that serialises concurrent writers
// on the market row, so pool totals never drift from the sum of their parts.
type TradingStore interface {
	// Stake upserts the (user, market, side) position, moves the matching
	// pool and total volume by amount, bumps the user's prediction counter,
	// and appends a STAKE ledger entry. All or nothing.
	Stake(ctx context.Context, p StakeParams) (StakeResult, error)

	// AttachPayout creates a PAYOUT ledger entry for amount and sets it as
	// the position's payout reference, guarded by a compare-and-set on the
	// reference still being null. Returns ErrAlreadyClaimed when another
	// claim won the race.
	AttachPayout(ctx context.Context, positionID, userID, marketID string, amount decimal.Decimal) (Transaction, error)

	// Resolve sets the market outcome, marks it RESOLVED, and settles every
	// position: winners book stake*total/winning_pool - stake, losers book
	// -stake. User win statistics are updated in the same transaction.
	Resolve(ctx context.Context, marketID string, outcome bool) (Market, []Position, error)

	// Cancel marks a market CANCELLED. The zero-positions precondition is
	// checked under the market lock; ErrConflict when positions exist.
	Cancel(ctx context.Context, marketID string) (Market, error)
}
