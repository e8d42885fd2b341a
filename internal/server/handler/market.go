package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/quantumwager/wagerd/internal/domain"
	"github.com/quantumwager/wagerd/internal/service"
)

// MarketHandler serves the public market catalogue.
type MarketHandler struct {
	markets *service.MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// ListMarkets returns markets matching the query filters.
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := parseListOpts(r)

	filter := domain.MarketFilter{
		Status:   domain.MarketStatus(q.Get("status")),
		Category: q.Get("category"),
		SortBy:   q.Get("sort"),
		SortDesc: q.Get("order") != "asc",
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}
	if v := q.Get("featured"); v != "" {
		featured := v == "true"
		filter.Featured = &featured
	}

	markets, total, err := h.markets.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets": renderMarkets(markets),
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetMarket returns a single market.
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderMarket(m))
}

// ListFeatured returns active markets flagged for the front page.
func (h *MarketHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.Featured(r.Context(), queryLimit(r, 10))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": renderMarkets(markets)})
}

// ListTrending returns active markets with the most recent stake volume.
func (h *MarketHandler) ListTrending(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.Trending(r.Context(), queryLimit(r, 10))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": renderMarkets(markets)})
}

// ListCategories aggregates market counts and volume per category.
func (h *MarketHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.markets.Categories(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	type categoryView struct {
		Category      string `json:"category"`
		MarketCount   int64  `json:"market_count"`
		ActiveMarkets int64  `json:"active_markets"`
		TotalVolume   string `json:"total_volume"`
	}
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{
			Category:      c.Category,
			MarketCount:   c.MarketCount,
			ActiveMarkets: c.ActiveMarkets,
			TotalVolume:   c.TotalVolume.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// MarketActivity returns a market's recent ledger entries.
func (h *MarketHandler) MarketActivity(w http.ResponseWriter, r *http.Request) {
	txs, err := h.markets.Activity(r.Context(), pathParam(r, "id"), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": renderTransactions(txs)})
}

// queryLimit reads a bounded limit query parameter with a default.
func queryLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}
