package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumwager/wagerd/internal/domain"
)

type marketFixture struct {
	markets   *fakeMarketStore
	positions *fakePositionStore
	txs       *fakeTransactionStore
	trading   *fakeTradingStore
	cache     *fakeMarketCache
	broadcast *fakeBroadcaster
	notifier  *fakeNotifier
	svc       *MarketService
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	f := &marketFixture{
		markets:   newFakeMarketStore(),
		positions: newFakePositionStore(),
		txs:       newFakeTransactionStore(),
		cache:     newFakeMarketCache(),
		broadcast: &fakeBroadcaster{},
		notifier:  &fakeNotifier{},
	}
	f.trading = newFakeTradingStore(f.markets, f.positions, newFakeUserStore(), f.txs)
	f.svc = NewMarketService(
		f.markets, f.trading, f.positions, f.txs,
		f.cache, f.broadcast, f.notifier, testLogger(),
	)
	return f
}

func TestCreateMarket(t *testing.T) {
	f := newMarketFixture(t)

	m, err := f.svc.Create(context.Background(), CreateParams{
		Question:  "Will the launch happen this quarter?",
		Category:  "tech",
		EndTime:   time.Now().Add(48 * time.Hour),
		CreatorID: "admin-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.True(t, m.YesPool.IsZero())
	assert.Equal(t, 1, f.broadcast.count("market_created"))
	assert.Contains(t, f.notifier.events, "market_created")
}

func TestCreateMarketValidation(t *testing.T) {
	f := newMarketFixture(t)

	_, err := f.svc.Create(context.Background(), CreateParams{
		Question: "  ",
		EndTime:  time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Create(context.Background(), CreateParams{
		Question: "Past market?",
		EndTime:  time.Now().Add(-time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetServesFromCache(t *testing.T) {
	f := newMarketFixture(t)

	m, err := f.svc.Create(context.Background(), CreateParams{
		Question: "Cached?",
		EndTime:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	// First read fills the cache from the store.
	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	cached, err := f.cache.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, cached.ID)

	// A stale cache entry is served as-is until invalidated.
	cached.Question = "stale copy"
	require.NoError(t, f.cache.Set(context.Background(), cached))
	got, err = f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "stale copy", got.Question)
}

func TestResolveSettlesAndInvalidates(t *testing.T) {
	f := newMarketFixture(t)

	m, err := f.svc.Create(context.Background(), CreateParams{
		Question: "Resolvable?",
		EndTime:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	// Warm the cache, then resolve.
	_, err = f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)

	resolved, err := f.svc.Resolve(context.Background(), m.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Outcome)
	assert.True(t, *resolved.Outcome)

	_, err = f.cache.Get(context.Background(), m.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, f.broadcast.count("market_resolved"))
	assert.Contains(t, f.notifier.events, "market_resolved")

	// Resolving twice conflicts.
	_, err = f.svc.Resolve(context.Background(), m.ID, false)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCancelRejectsStakedMarket(t *testing.T) {
	f := newMarketFixture(t)

	m, err := f.svc.Create(context.Background(), CreateParams{
		Question: "Cancellable?",
		EndTime:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	f.positions.put(domain.Position{
		ID:           "p-1",
		UserID:       "u-1",
		MarketID:     m.ID,
		Side:         domain.SideYes,
		AmountStaked: decimal.NewFromInt(5),
	})

	_, err = f.svc.Cancel(context.Background(), m.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCancelEmptyMarket(t *testing.T) {
	f := newMarketFixture(t)

	m, err := f.svc.Create(context.Background(), CreateParams{
		Question: "Cancellable?",
		EndTime:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, f.broadcast.count("market_cancelled"))
}

func TestActivityUnknownMarket(t *testing.T) {
	f := newMarketFixture(t)

	_, err := f.svc.Activity(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
