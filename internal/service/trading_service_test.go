package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumwager/wagerd/internal/domain"
)

type tradingFixture struct {
	users     *fakeUserStore
	markets   *fakeMarketStore
	positions *fakePositionStore
	txs       *fakeTransactionStore
	trading   *fakeTradingStore
	cache     *fakeMarketCache
	broadcast *fakeBroadcaster
	svc       *TradingService
}

func newTradingFixture(t *testing.T) *tradingFixture {
	t.Helper()
	f := &tradingFixture{
		users:     newFakeUserStore(),
		markets:   newFakeMarketStore(),
		positions: newFakePositionStore(),
		txs:       newFakeTransactionStore(),
		cache:     newFakeMarketCache(),
		broadcast: &fakeBroadcaster{},
	}
	f.trading = newFakeTradingStore(f.markets, f.positions, f.users, f.txs)
	f.svc = NewTradingService(
		f.trading, f.positions, f.markets, f.txs,
		f.cache, f.broadcast, decimal.NewFromInt(1), testLogger(),
	)
	return f
}

func (f *tradingFixture) addUser(t *testing.T) domain.User {
	t.Helper()
	u := domain.User{
		ID:            uuid.NewString(),
		WalletAddress: uuid.NewString(),
		TotalVolume:   decimal.Zero,
		WinRate:       decimal.Zero,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *tradingFixture) addMarket(t *testing.T, status domain.MarketStatus) domain.Market {
	t.Helper()
	m := domain.Market{
		ID:          uuid.NewString(),
		Question:    "Will it rain tomorrow?",
		Category:    "weather",
		Status:      status,
		EndTime:     time.Now().Add(24 * time.Hour),
		YesPool:     decimal.Zero,
		NoPool:      decimal.Zero,
		TotalVolume: decimal.Zero,
		CreatorID:   uuid.NewString(),
	}
	require.NoError(t, f.markets.Create(context.Background(), m))
	return m
}

func TestStakeMovesPoolAndLedger(t *testing.T) {
	f := newTradingFixture(t)
	u := f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusActive)

	res, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.NewFromInt(100), "hash-1")
	require.NoError(t, err)

	assert.True(t, res.Market.YesPool.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.Market.TotalVolume.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.Position.AmountStaked.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.TxTypeStake, res.Transaction.Type)

	// User counters moved with the stake.
	got, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalPredictions)
	assert.True(t, got.TotalVolume.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, 1, f.broadcast.count("odds_update"))
}

func TestStakeAccumulatesOnSameSide(t *testing.T) {
	f := newTradingFixture(t)
	u := f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusActive)

	first, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideNo, decimal.NewFromInt(40), "hash-1")
	require.NoError(t, err)
	second, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideNo, decimal.NewFromInt(60), "hash-2")
	require.NoError(t, err)

	assert.Equal(t, first.Position.ID, second.Position.ID)
	assert.True(t, second.Position.AmountStaked.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, second.Position.StakeTxHash)
	assert.Equal(t, "hash-2", *second.Position.StakeTxHash)
	assert.True(t, second.Market.NoPool.Equal(decimal.NewFromInt(100)))
}

func TestStakeLeavesShareFieldsAtOpeningValues(t *testing.T) {
	f := newTradingFixture(t)
	u := f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusActive)

	first, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.NewFromInt(50), "hash-1")
	require.NoError(t, err)
	assert.True(t, first.Position.SharesOwned.IsZero())
	assert.True(t, first.Position.AveragePrice.IsZero())

	// Repeat stakes grow the staked amount only.
	second, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.NewFromInt(30), "hash-2")
	require.NoError(t, err)
	assert.True(t, second.Position.AmountStaked.Equal(decimal.NewFromInt(80)))
	assert.True(t, second.Position.SharesOwned.IsZero())
	assert.True(t, second.Position.AveragePrice.IsZero())
}

func TestStakeValidation(t *testing.T) {
	f := newTradingFixture(t)
	u := f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusActive)

	_, err := f.svc.Stake(context.Background(), u.ID, m.ID, "MAYBE", decimal.NewFromInt(10), "h")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.Zero, "h")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.NewFromInt(10), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStakeOnClosedMarket(t *testing.T) {
	f := newTradingFixture(t)
	u := f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusResolved)

	_, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.NewFromInt(10), "h")
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
}

// settleMarket stakes both sides, resolves YES, and returns the two positions.
func settleMarket(t *testing.T, f *tradingFixture) (winner, loser domain.Position, winnerUser, loserUser domain.User) {
	t.Helper()
	winnerUser = f.addUser(t)
	loserUser = f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusActive)

	wres, err := f.svc.Stake(context.Background(), winnerUser.ID, m.ID, domain.SideYes, decimal.NewFromInt(100), "h1")
	require.NoError(t, err)
	lres, err := f.svc.Stake(context.Background(), loserUser.ID, m.ID, domain.SideNo, decimal.NewFromInt(300), "h2")
	require.NoError(t, err)

	_, _, err = f.trading.Resolve(context.Background(), m.ID, true)
	require.NoError(t, err)

	winner, err = f.positions.GetByID(context.Background(), wres.Position.ID)
	require.NoError(t, err)
	loser, err = f.positions.GetByID(context.Background(), lres.Position.ID)
	require.NoError(t, err)
	return winner, loser, winnerUser, loserUser
}

func TestClaimPaysSettledProfit(t *testing.T) {
	f := newTradingFixture(t)
	winner, _, winnerUser, _ := settleMarket(t, f)

	// 100 staked on YES out of a 400 pool: profit 300. The payout ledger
	// entry carries the profit alone, not stake plus profit.
	require.NotNil(t, winner.ProfitLoss)
	assert.True(t, winner.ProfitLoss.Equal(decimal.NewFromInt(300)))

	ledger, err := f.svc.Claim(context.Background(), winnerUser.ID, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypePayout, ledger.Type)
	assert.True(t, ledger.Amount.Equal(decimal.NewFromInt(300)))

	got, err := f.positions.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PayoutTxID)
	assert.Equal(t, ledger.ID, *got.PayoutTxID)
}

func TestClaimFailureOrder(t *testing.T) {
	f := newTradingFixture(t)
	winner, loser, winnerUser, loserUser := settleMarket(t, f)

	// Unknown position.
	_, err := f.svc.Claim(context.Background(), winnerUser.ID, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Someone else's position reports ownership before any other state.
	_, err = f.svc.Claim(context.Background(), loserUser.ID, winner.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	// Losing side.
	_, err = f.svc.Claim(context.Background(), loserUser.ID, loser.ID)
	assert.ErrorIs(t, err, domain.ErrNotWinning)

	// Second claim after a successful one.
	_, err = f.svc.Claim(context.Background(), winnerUser.ID, winner.ID)
	require.NoError(t, err)
	_, err = f.svc.Claim(context.Background(), winnerUser.ID, winner.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestConcurrentClaimsPayOutOnce(t *testing.T) {
	f := newTradingFixture(t)
	winner, _, winnerUser, _ := settleMarket(t, f)

	const claimers = 8
	errs := make([]error, claimers)
	var wg sync.WaitGroup
	wg.Add(claimers)
	for i := range claimers {
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Claim(context.Background(), winnerUser.ID, winner.ID)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, wins)

	// Exactly one PAYOUT entry landed in the ledger.
	txs, err := f.txs.ListByUser(context.Background(), winnerUser.ID, domain.ListOpts{Limit: 50})
	require.NoError(t, err)
	payouts := 0
	for _, tx := range txs {
		if tx.Type == domain.TxTypePayout {
			payouts++
		}
	}
	assert.Equal(t, 1, payouts)
}

func TestClaimUnsettledPosition(t *testing.T) {
	f := newTradingFixture(t)
	u := f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusActive)

	res, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.NewFromInt(10), "h")
	require.NoError(t, err)

	_, err = f.svc.Claim(context.Background(), u.ID, res.Position.ID)
	assert.ErrorIs(t, err, domain.ErrNotSettled)
}

func TestGetPositionOwnership(t *testing.T) {
	f := newTradingFixture(t)
	u := f.addUser(t)
	other := f.addUser(t)
	m := f.addMarket(t, domain.MarketStatusActive)

	res, err := f.svc.Stake(context.Background(), u.ID, m.ID, domain.SideYes, decimal.NewFromInt(10), "h")
	require.NoError(t, err)

	got, err := f.svc.GetPosition(context.Background(), u.ID, res.Position.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Position.ID, got.ID)

	_, err = f.svc.GetPosition(context.Background(), other.ID, res.Position.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestPositionsFilterSettled(t *testing.T) {
	f := newTradingFixture(t)
	winner, _, winnerUser, _ := settleMarket(t, f)

	settled := true
	got, err := f.svc.Positions(context.Background(), winnerUser.ID, &settled)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, winner.ID, got[0].ID)

	open := false
	got, err = f.svc.Positions(context.Background(), winnerUser.ID, &open)
	require.NoError(t, err)
	assert.Empty(t, got)
}
