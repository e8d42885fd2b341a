package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumwager/wagerd/internal/domain"
)

func newUserFixture(t *testing.T) (*UserService, *fakeUserStore, *fakePositionStore) {
	t.Helper()
	users := newFakeUserStore()
	positions := newFakePositionStore()
	return NewUserService(users, positions, testLogger()), users, positions
}

func seedUser(t *testing.T, users *fakeUserStore) domain.User {
	t.Helper()
	u := domain.User{
		ID:            uuid.NewString(),
		WalletAddress: uuid.NewString() + uuid.NewString(),
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestUserGetUnknown(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateProfileValidation(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	u := seedUser(t, users)

	bad := "   "
	_, err := svc.UpdateProfile(context.Background(), u.ID, domain.UserUpdate{Username: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noAt := "nobody.example.com"
	_, err = svc.UpdateProfile(context.Background(), u.ID, domain.UserUpdate{Email: &noAt})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	name := "  trader_one  "
	got, err := svc.UpdateProfile(context.Background(), u.ID, domain.UserUpdate{Username: &name})
	require.NoError(t, err)
	require.NotNil(t, got.Username)
	assert.Equal(t, "trader_one", *got.Username)
}

func TestSummaryAggregatesPositions(t *testing.T) {
	svc, users, positions := newUserFixture(t)
	u := seedUser(t, users)

	loss := decimal.RequireFromString("-40")
	win := decimal.RequireFromString("125.5")

	positions.put(domain.Position{
		ID:           uuid.NewString(),
		UserID:       u.ID,
		Side:         domain.SideYes,
		AmountStaked: decimal.RequireFromString("100"),
	})
	positions.put(domain.Position{
		ID:           uuid.NewString(),
		UserID:       u.ID,
		Side:         domain.SideNo,
		AmountStaked: decimal.RequireFromString("40"),
		Settled:      true,
		ProfitLoss:   &loss,
	})
	positions.put(domain.Position{
		ID:           uuid.NewString(),
		UserID:       u.ID,
		Side:         domain.SideYes,
		AmountStaked: decimal.RequireFromString("60"),
		Settled:      true,
		ProfitLoss:   &win,
	})
	// Someone else's position must not leak into the summary.
	positions.put(domain.Position{
		ID:           uuid.NewString(),
		UserID:       uuid.NewString(),
		Side:         domain.SideYes,
		AmountStaked: decimal.RequireFromString("999"),
	})

	sum, err := svc.Summary(context.Background(), u.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Open)
	assert.Equal(t, 2, sum.Settled)
	assert.True(t, sum.TotalStaked.Equal(decimal.RequireFromString("200")), sum.TotalStaked.String())
	assert.True(t, sum.ProfitLoss.Equal(decimal.RequireFromString("85.5")), sum.ProfitLoss.String())
}

func TestSummaryEmpty(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	u := seedUser(t, users)

	sum, err := svc.Summary(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.Open)
	assert.Zero(t, sum.Settled)
	assert.True(t, sum.TotalStaked.IsZero())
}

func TestLeaderboardSorts(t *testing.T) {
	svc, users, _ := newUserFixture(t)

	seed := func(rep int, winRate string) domain.User {
		u := seedUser(t, users)
		u.ReputationScore = rep
		u.WinRate = decimal.RequireFromString(winRate)
		u.TotalPredictions = 1
		users.users[u.ID] = u
		return u
	}
	steady := seed(50, "0.9")
	whale := seed(90, "0.2")

	// Reputation is the default ordering.
	got, err := svc.Leaderboard(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, whale.ID, got[0].ID)

	got, err = svc.Leaderboard(context.Background(), domain.LeaderboardSortWinRate, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, steady.ID, got[0].ID)

	_, err = svc.Leaderboard(context.Background(), "bogus", 10, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
