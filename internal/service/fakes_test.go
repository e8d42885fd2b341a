package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantumwager/wagerd/internal/domain"
)

// In-memory store fakes shared by the service tests.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]domain.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.WalletAddress == u.WalletAddress {
			return domain.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetByWallet(_ context.Context, wallet string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.WalletAddress == wallet {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUserStore) SetChallenge(_ context.Context, id, nonce string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Nonce = &nonce
	u.NonceExpires = &expires
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) ClearChallenge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Nonce = nil
	u.NonceExpires = nil
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, id string, upd domain.UserUpdate) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if upd.Username != nil {
		u.Username = upd.Username
	}
	if upd.Email != nil {
		u.Email = upd.Email
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeUserStore) Leaderboard(_ context.Context, sortKey string, limit, offset int) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		if u.TotalPredictions > 0 {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		switch sortKey {
		case domain.LeaderboardSortVolume:
			return out[i].TotalVolume.GreaterThan(out[j].TotalVolume)
		case domain.LeaderboardSortWinRate:
			return out[i].WinRate.GreaterThan(out[j].WinRate)
		default:
			return out[i].ReputationScore > out[j].ReputationScore
		}
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type fakeMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{markets: map[string]domain.Market{}}
}

func (f *fakeMarketStore) Create(_ context.Context, m domain.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	f.markets[m.ID] = m
	return nil
}

func (f *fakeMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketStore) List(_ context.Context, filter domain.MarketFilter) ([]domain.Market, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Market
	for _, m := range f.markets {
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.Category != "" && m.Category != filter.Category {
			continue
		}
		if filter.Featured != nil && m.Featured != *filter.Featured {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (f *fakeMarketStore) ListFeatured(_ context.Context, limit int) ([]domain.Market, error) {
	feat := true
	out, _, _ := f.List(context.Background(), domain.MarketFilter{
		Status: domain.MarketStatusActive, Featured: &feat,
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMarketStore) ListTrending(_ context.Context, limit int) ([]domain.Market, error) {
	out, _, _ := f.List(context.Background(), domain.MarketFilter{Status: domain.MarketStatusActive})
	sort.Slice(out, func(i, j int) bool {
		return out[i].TotalVolume.GreaterThan(out[j].TotalVolume)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMarketStore) Categories(_ context.Context) ([]domain.CategorySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byCat := map[string]*domain.CategorySummary{}
	for _, m := range f.markets {
		c, ok := byCat[m.Category]
		if !ok {
			c = &domain.CategorySummary{Category: m.Category, TotalVolume: decimal.Zero}
			byCat[m.Category] = c
		}
		c.MarketCount++
		if m.Status == domain.MarketStatusActive {
			c.ActiveMarkets++
		}
		c.TotalVolume = c.TotalVolume.Add(m.TotalVolume)
	}
	var out []domain.CategorySummary
	for _, c := range byCat {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeMarketStore) Update(_ context.Context, id string, upd domain.MarketUpdate) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if upd.Question != nil {
		m.Question = *upd.Question
	}
	if upd.Description != nil {
		m.Description = *upd.Description
	}
	if upd.Category != nil {
		m.Category = *upd.Category
	}
	if upd.EndTime != nil {
		m.EndTime = *upd.EndTime
	}
	if upd.ResolutionCriteria != nil {
		m.ResolutionCriteria = *upd.ResolutionCriteria
	}
	if upd.Featured != nil {
		m.Featured = *upd.Featured
	}
	f.markets[id] = m
	return m, nil
}

type fakePositionStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{positions: map[string]domain.Position{}}
}

func (f *fakePositionStore) put(p domain.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[p.ID] = p
}

func (f *fakePositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePositionStore) ListByUser(_ context.Context, userID string, settled *bool) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, p := range f.positions {
		if p.UserID != userID {
			continue
		}
		if settled != nil && p.Settled != *settled {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePositionStore) ListSettled(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, int64, error) {
	settled := true
	out, err := f.ListByUser(ctx, userID, &settled)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(out))
	if opts.Offset > 0 && opts.Offset < len(out) {
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, total, nil
}

func (f *fakePositionStore) ListByMarket(_ context.Context, marketID string, limit int) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, p := range f.positions {
		if p.MarketID == marketID {
			out = append(out, p)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePositionStore) CountByMarket(ctx context.Context, marketID string) (int64, error) {
	out, _ := f.ListByMarket(ctx, marketID, 0)
	return int64(len(out)), nil
}

type fakeTransactionStore struct {
	mu  sync.Mutex
	txs []domain.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore { return &fakeTransactionStore{} }

func (f *fakeTransactionStore) append(t domain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, t)
}

func (f *fakeTransactionStore) GetByID(_ context.Context, id string) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Transaction{}, domain.ErrNotFound
}

func (f *fakeTransactionStore) ListByMarket(_ context.Context, marketID string, limit int) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.MarketID != nil && *t.MarketID == marketID {
			out = append(out, t)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTransactionStore) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeTransactionStore) ListCompletedBefore(_ context.Context, before time.Time) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.Status == domain.TxStatusCompleted && t.CreatedAt.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []domain.Transaction
	var n int64
	for _, t := range f.txs {
		if t.Status == domain.TxStatusCompleted && t.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	f.txs = kept
	return n, nil
}

// fakeTradingStore mirrors the transactional semantics of the SQL
// implementation closely enough for service-level tests.
type fakeTradingStore struct {
	mu        sync.Mutex
	markets   *fakeMarketStore
	positions *fakePositionStore
	users     *fakeUserStore
	txs       *fakeTransactionStore
}

func newFakeTradingStore(m *fakeMarketStore, p *fakePositionStore, u *fakeUserStore, t *fakeTransactionStore) *fakeTradingStore {
	return &fakeTradingStore{markets: m, positions: p, users: u, txs: t}
}

func (f *fakeTradingStore) Stake(ctx context.Context, params domain.StakeParams) (domain.StakeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.markets.GetByID(ctx, params.MarketID)
	if err != nil {
		return domain.StakeResult{}, err
	}
	if m.Status != domain.MarketStatusActive || time.Now().After(m.EndTime) {
		return domain.StakeResult{}, domain.ErrMarketClosed
	}

	if params.Side == domain.SideYes {
		m.YesPool = m.YesPool.Add(params.Amount)
	} else {
		m.NoPool = m.NoPool.Add(params.Amount)
	}
	m.TotalVolume = m.TotalVolume.Add(params.Amount)
	f.markets.markets[m.ID] = m

	var pos domain.Position
	found := false
	for _, p := range f.positions.positions {
		if p.UserID == params.UserID && p.MarketID == params.MarketID && p.Side == params.Side {
			pos = p
			found = true
			break
		}
	}
	hash := params.StakeTxHash
	if found {
		pos.AmountStaked = pos.AmountStaked.Add(params.Amount)
		pos.StakeTxHash = &hash
	} else {
		// Share fields are written once at create and never recomputed,
		// matching the SQL upsert.
		pos = domain.Position{
			ID:           uuid.NewString(),
			UserID:       params.UserID,
			MarketID:     params.MarketID,
			Side:         params.Side,
			AmountStaked: params.Amount,
			SharesOwned:  decimal.Zero,
			AveragePrice: decimal.Zero,
			StakeTxHash:  &hash,
			CreatedAt:    time.Now(),
		}
	}
	f.positions.positions[pos.ID] = pos

	if u, ok := f.users.users[params.UserID]; ok {
		u.TotalPredictions++
		u.TotalVolume = u.TotalVolume.Add(params.Amount)
		f.users.users[params.UserID] = u
	}

	ledger := domain.Transaction{
		ID:         uuid.NewString(),
		UserID:     params.UserID,
		MarketID:   &m.ID,
		PositionID: &pos.ID,
		Type:       domain.TxTypeStake,
		Amount:     params.Amount,
		TxHash:     &hash,
		Status:     domain.TxStatusCompleted,
		CreatedAt:  time.Now(),
	}
	f.txs.append(ledger)

	return domain.StakeResult{Position: pos, Market: m, Transaction: ledger}, nil
}

func (f *fakeTradingStore) AttachPayout(_ context.Context, positionID, userID, marketID string, amount decimal.Decimal) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pos, ok := f.positions.positions[positionID]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if pos.PayoutTxID != nil {
		return domain.Transaction{}, domain.ErrAlreadyClaimed
	}

	ledger := domain.Transaction{
		ID:         uuid.NewString(),
		UserID:     userID,
		MarketID:   &marketID,
		PositionID: &positionID,
		Type:       domain.TxTypePayout,
		Amount:     amount,
		Status:     domain.TxStatusCompleted,
		CreatedAt:  time.Now(),
	}
	f.txs.append(ledger)

	pos.PayoutTxID = &ledger.ID
	f.positions.positions[positionID] = pos
	return ledger, nil
}

func (f *fakeTradingStore) Resolve(ctx context.Context, marketID string, outcome bool) (domain.Market, []domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, nil, err
	}
	if m.Status != domain.MarketStatusActive {
		return domain.Market{}, nil, domain.ErrConflict
	}

	m.Status = domain.MarketStatusResolved
	m.Outcome = &outcome
	f.markets.markets[m.ID] = m

	winningPool := m.NoPool
	if outcome {
		winningPool = m.YesPool
	}

	now := time.Now()
	var settled []domain.Position
	for id, p := range f.positions.positions {
		if p.MarketID != marketID || p.Settled {
			continue
		}
		var pl decimal.Decimal
		if p.Side.Wins(outcome) {
			gross := p.AmountStaked.Mul(m.TotalVolume).Div(winningPool)
			pl = gross.Sub(p.AmountStaked)
		} else {
			pl = p.AmountStaked.Neg()
		}
		p.Settled = true
		p.SettledAt = &now
		p.ProfitLoss = &pl
		f.positions.positions[id] = p
		settled = append(settled, p)
	}
	return m, settled, nil
}

func (f *fakeTradingStore) Cancel(ctx context.Context, marketID string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	if m.Status != domain.MarketStatusActive && m.Status != domain.MarketStatusPending {
		return domain.Market{}, domain.ErrConflict
	}
	for _, p := range f.positions.positions {
		if p.MarketID == marketID {
			return domain.Market{}, domain.ErrConflict
		}
	}
	m.Status = domain.MarketStatusCancelled
	f.markets.markets[m.ID] = m
	return m, nil
}

type fakeMarketCache struct {
	mu      sync.Mutex
	entries map[string]domain.Market
}

func newFakeMarketCache() *fakeMarketCache {
	return &fakeMarketCache{entries: map[string]domain.Market{}}
}

func (f *fakeMarketCache) Set(_ context.Context, m domain.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[m.ID] = m
	return nil
}

func (f *fakeMarketCache) Get(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.entries[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketCache) Invalidate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

type broadcastEvent struct {
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (f *fakeBroadcaster) Publish(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, broadcastEvent{event: event, payload: payload})
}

func (f *fakeBroadcaster) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
