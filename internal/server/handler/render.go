package handler

import (
	"time"

	"github.com/quantumwager/wagerd/internal/domain"
)

// JSON views of the domain types. Money renders as decimal strings so
// clients never round through floats.

type marketView struct {
	ID                 string     `json:"id"`
	Question           string     `json:"question"`
	Description        string     `json:"description"`
	Category           string     `json:"category"`
	Status             string     `json:"status"`
	EndTime            time.Time  `json:"end_time"`
	ResolutionCriteria string     `json:"resolution_criteria,omitempty"`
	Featured           bool       `json:"featured"`
	YesPool            string     `json:"yes_pool"`
	NoPool             string     `json:"no_pool"`
	TotalVolume        string     `json:"total_volume"`
	YesOdds            string     `json:"yes_odds"`
	NoOdds             string     `json:"no_odds"`
	Outcome            *bool      `json:"outcome,omitempty"`
	CreatorID          string     `json:"creator_id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func renderMarket(m domain.Market) marketView {
	yes, no := m.Odds()
	return marketView{
		ID:                 m.ID,
		Question:           m.Question,
		Description:        m.Description,
		Category:           m.Category,
		Status:             string(m.Status),
		EndTime:            m.EndTime,
		ResolutionCriteria: m.ResolutionCriteria,
		Featured:           m.Featured,
		YesPool:            m.YesPool.String(),
		NoPool:             m.NoPool.String(),
		TotalVolume:        m.TotalVolume.String(),
		YesOdds:            yes.StringFixed(4),
		NoOdds:             no.StringFixed(4),
		Outcome:            m.Outcome,
		CreatorID:          m.CreatorID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func renderMarkets(ms []domain.Market) []marketView {
	out := make([]marketView, 0, len(ms))
	for _, m := range ms {
		out = append(out, renderMarket(m))
	}
	return out
}

type positionView struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	MarketID     string     `json:"market_id"`
	Side         string     `json:"side"`
	AmountStaked string     `json:"amount_staked"`
	SharesOwned  string     `json:"shares_owned"`
	AveragePrice string     `json:"average_price"`
	StakeTxHash  *string    `json:"stake_tx_hash,omitempty"`
	Settled      bool       `json:"settled"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
	ProfitLoss   *string    `json:"profit_loss,omitempty"`
	PayoutTxID   *string    `json:"payout_tx_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func renderPosition(p domain.Position) positionView {
	v := positionView{
		ID:           p.ID,
		UserID:       p.UserID,
		MarketID:     p.MarketID,
		Side:         string(p.Side),
		AmountStaked: p.AmountStaked.String(),
		SharesOwned:  p.SharesOwned.String(),
		AveragePrice: p.AveragePrice.String(),
		StakeTxHash:  p.StakeTxHash,
		Settled:      p.Settled,
		SettledAt:    p.SettledAt,
		PayoutTxID:   p.PayoutTxID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.ProfitLoss != nil {
		pl := p.ProfitLoss.String()
		v.ProfitLoss = &pl
	}
	return v
}

func renderPositions(ps []domain.Position) []positionView {
	out := make([]positionView, 0, len(ps))
	for _, p := range ps {
		out = append(out, renderPosition(p))
	}
	return out
}

type transactionView struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MarketID   *string   `json:"market_id,omitempty"`
	PositionID *string   `json:"position_id,omitempty"`
	Type       string    `json:"type"`
	Amount     string    `json:"amount"`
	TxHash     *string   `json:"tx_hash,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func renderTransaction(t domain.Transaction) transactionView {
	return transactionView{
		ID:         t.ID,
		UserID:     t.UserID,
		MarketID:   t.MarketID,
		PositionID: t.PositionID,
		Type:       string(t.Type),
		Amount:     t.Amount.String(),
		TxHash:     t.TxHash,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt,
	}
}

func renderTransactions(ts []domain.Transaction) []transactionView {
	out := make([]transactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, renderTransaction(t))
	}
	return out
}

type userView struct {
	ID                 string     `json:"id"`
	WalletAddress      string     `json:"wallet_address"`
	Username           *string    `json:"username,omitempty"`
	Email              *string    `json:"email,omitempty"`
	ReputationScore    int        `json:"reputation_score"`
	TotalVolume        string     `json:"total_volume"`
	WinRate            string     `json:"win_rate"`
	TotalPredictions   int        `json:"total_predictions"`
	CorrectPredictions int        `json:"correct_predictions"`
	IsVerified         bool       `json:"is_verified"`
	LastActive         *time.Time `json:"last_active,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func renderUser(u domain.User) userView {
	return userView{
		ID:                 u.ID,
		WalletAddress:      u.WalletAddress,
		Username:           u.Username,
		Email:              u.Email,
		ReputationScore:    u.ReputationScore,
		TotalVolume:        u.TotalVolume.String(),
		WinRate:            u.WinRate.StringFixed(4),
		TotalPredictions:   u.TotalPredictions,
		CorrectPredictions: u.CorrectPredictions,
		IsVerified:         u.IsVerified,
		LastActive:         u.LastActive,
		CreatedAt:          u.CreatedAt,
	}
}

// publicUser hides contact details when rendering someone else's profile.
func renderPublicUser(u domain.User) userView {
	v := renderUser(u)
	v.Email = nil
	return v
}

type leaderboardEntry struct {
	Rank int `json:"rank"`
	userView
}

// renderLeaderboard numbers entries from the page offset so rank stays
// stable across pages.
func renderLeaderboard(us []domain.User, offset int) []leaderboardEntry {
	out := make([]leaderboardEntry, 0, len(us))
	for i, u := range us {
		out = append(out, leaderboardEntry{Rank: offset + i + 1, userView: renderPublicUser(u)})
	}
	return out
}
