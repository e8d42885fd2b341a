package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "ACTIVE"
	MarketStatusResolved  MarketStatus = "RESOLVED"
	MarketStatusCancelled MarketStatus = "CANCELLED"
	MarketStatusPending   MarketStatus = "PENDING"
)

// Market is a binary-outcome prediction market backed by two liquidity pools.
// Every stake moves exactly one pool and TotalVolume by the same delta, so
// TotalVolume == YesPool + NoPool holds at all times.
type Market struct {
	ID                 string
	Question           string
	Description        string
	Category           string
	Status             MarketStatus
	EndTime            time.Time
	ResolutionCriteria string
	Featured           bool

	YesPool     decimal.Decimal
	NoPool      decimal.Decimal
	TotalVolume decimal.Decimal

	// Outcome is set exactly once, at resolution.
	Outcome *bool

	CreatorID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Odds returns the implied YES and NO probabilities from the pool ratios.
// Both are zero while the market has no volume.
func (m Market) Odds() (yes, no decimal.Decimal) {
	if m.TotalVolume.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return m.YesPool.Div(m.TotalVolume), m.NoPool.Div(m.TotalVolume)
}

// MarketUpdate enumerates the mutable market attributes for admin updates.
// Nil fields are left unchanged.
type MarketUpdate struct {
	Question           *string
	Description        *string
	Category           *string
	EndTime            *time.Time
	ResolutionCriteria *string
	Featured           *bool
}

// MarketFilter narrows and orders market listings.
type MarketFilter struct {
	Status    MarketStatus // empty matches all statuses
	Category  string
	Featured  *bool
	CreatorID string
	SortBy    string // "created_at", "volume", "end_time"
	SortDesc  bool
	Limit     int
	Offset    int
}

// CategorySummary aggregates market counts and volume per category.
type CategorySummary struct {
	Category      string
	MarketCount   int64
	ActiveMarkets int64
	TotalVolume   decimal.Decimal
}
