package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantumwager/wagerd/internal/domain"
)

// UserService handles public profiles and the leaderboard.
type UserService struct {
	users     domain.UserStore
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewUserService creates a UserService with all required dependencies.
func NewUserService(users domain.UserStore, positions domain.PositionStore, logger *slog.Logger) *UserService {
	return &UserService{users: users, positions: positions, logger: logger}
}

// Get returns a user's public profile.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("user_service: get user %q: %w", id, err)
	}
	return user, nil
}

// UpdateProfile applies the caller's own profile edit.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd domain.UserUpdate) (domain.User, error) {
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" || len(name) > 32 {
			return domain.User{}, fmt.Errorf("user_service: bad username: %w", domain.ErrInvalidInput)
		}
		upd.Username = &name
	}
	if upd.Email != nil && !strings.Contains(*upd.Email, "@") {
		return domain.User{}, fmt.Errorf("user_service: bad email: %w", domain.ErrInvalidInput)
	}

	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyExists) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("user_service: update profile %q: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "user_service: profile updated",
		slog.String("user_id", userID),
	)
	return user, nil
}

// PositionSummary aggregates a user's ledger footprint for profile views.
type PositionSummary struct {
	Open        int
	Settled     int
	TotalStaked decimal.Decimal
	ProfitLoss  decimal.Decimal
}

// Summary folds the user's positions into headline numbers. ProfitLoss only
// counts settled positions; open stakes have no outcome yet.
func (s *UserService) Summary(ctx context.Context, userID string) (PositionSummary, error) {
	positions, err := s.positions.ListByUser(ctx, userID, nil)
	if err != nil {
		return PositionSummary{}, fmt.Errorf("user_service: summary %q: %w", userID, err)
	}

	var sum PositionSummary
	for _, p := range positions {
		sum.TotalStaked = sum.TotalStaked.Add(p.AmountStaked)
		if p.Settled {
			sum.Settled++
			if p.ProfitLoss != nil {
				sum.ProfitLoss = sum.ProfitLoss.Add(*p.ProfitLoss)
			}
		} else {
			sum.Open++
		}
	}
	return sum, nil
}

// Leaderboard returns ranked users. Sort defaults to reputation; unknown
// sort keys are rejected rather than silently remapped.
func (s *UserService) Leaderboard(ctx context.Context, sort string, limit, offset int) ([]domain.User, error) {
	switch sort {
	case "":
		sort = domain.LeaderboardSortReputation
	case domain.LeaderboardSortReputation, domain.LeaderboardSortVolume, domain.LeaderboardSortWinRate:
	default:
		return nil, fmt.Errorf("user_service: leaderboard sort %q: %w", sort, domain.ErrInvalidInput)
	}
	users, err := s.users.Leaderboard(ctx, sort, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("user_service: leaderboard: %w", err)
	}
	return users, nil
}
