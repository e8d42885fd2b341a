package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide is the market outcome a position is staked on.
type PositionSide string

const (
	SideYes PositionSide = "YES"
	SideNo  PositionSide = "NO"
)

// Valid reports whether the side is one of the two recognised values.
func (s PositionSide) Valid() bool {
	return s == SideYes || s == SideNo
}

// Wins reports whether this side pays out for the given market outcome.
func (s PositionSide) Wins(outcome bool) bool {
	if outcome {
		return s == SideYes
	}
	return s == SideNo
}

// Position is a user's cumulative stake on one side of one market. Exactly one
// row exists per (user, market, side); repeated stakes increment AmountStaked.
type Position struct {
	ID       string
	UserID   string
	MarketID string
	Side     PositionSide

	AmountStaked decimal.Decimal
	SharesOwned  decimal.Decimal
	AveragePrice decimal.Decimal

	// StakeTxHash is the external proof for the most recent stake.
	StakeTxHash *string

	Settled    bool
	SettledAt  *time.Time
	ProfitLoss *decimal.Decimal // populated at settlement

	// PayoutTxID is set exactly once, on successful claim. A non-nil value
	// blocks further claims.
	PayoutTxID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Claimable reports whether this settled position won against the given
// outcome and has not been paid out yet.
func (p Position) Claimable(outcome bool) bool {
	return p.Settled && p.PayoutTxID == nil && p.Side.Wins(outcome)
}
