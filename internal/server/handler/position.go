package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/quantumwager/wagerd/internal/domain"
	"github.com/quantumwager/wagerd/internal/service"
)

// PositionHandler serves stakes, claims, and portfolio reads. Every route
// requires an authenticated session.
type PositionHandler struct {
	trading *service.TradingService
	logger  *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(trading *service.TradingService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		trading: trading,
		logger:  logHandler(logger, "position"),
	}
}

type stakeRequest struct {
	MarketID    string `json:"market_id" validate:"required,uuid4"`
	Side        string `json:"side" validate:"required,oneof=YES NO"`
	Amount      string `json:"amount" validate:"required"`
	StakeTxHash string `json:"stake_tx_hash" validate:"required"`
}

// Stake places an amount on one side of a market.
func (h *PositionHandler) Stake(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req stakeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount is not a valid decimal")
		return
	}

	res, err := h.trading.Stake(r.Context(), session.UserID, req.MarketID,
		domain.PositionSide(req.Side), amount, req.StakeTxHash)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"position":    renderPosition(res.Position),
		"market":      renderMarket(res.Market),
		"transaction": renderTransaction(res.Transaction),
	})
}

// ListPositions returns the caller's positions, optionally filtered with
// ?settled=true|false.
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	var settled *bool
	if v := r.URL.Query().Get("settled"); v != "" {
		b := v == "true"
		settled = &b
	}

	positions, err := h.trading.Positions(r.Context(), session.UserID, settled)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": renderPositions(positions)})
}

// History pages through the caller's settled positions.
func (h *PositionHandler) History(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	opts := parseListOpts(r)
	positions, total, err := h.trading.History(r.Context(), session.UserID, opts)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"positions": renderPositions(positions),
		"total":     total,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}

// GetPosition returns one of the caller's positions.
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	pos, err := h.trading.GetPosition(r.Context(), session.UserID, pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderPosition(pos))
}

// Claim pays out a settled winning position.
func (h *PositionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	ledger, err := h.trading.Claim(r.Context(), session.UserID, pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payout": renderTransaction(ledger)})
}

// ListTransactions returns the caller's ledger entries.
func (h *PositionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}

	txs, err := h.trading.Transactions(r.Context(), session.UserID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": renderTransactions(txs)})
}
