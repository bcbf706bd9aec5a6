package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"btcarena/internal/domain"
	"btcarena/internal/engine"
	"btcarena/internal/infra"
	"btcarena/pkg/money"
)

// Handler wires the engine and its collaborators to HTTP. Callers identify
// themselves with the X-Account-ID header; there is no authentication
// layer, the id is an opaque stable string the frontend owns.
type Handler struct {
	engine   *engine.Engine
	oracle   *infra.PriceOracle
	news     *infra.NewsAggregator
	cooldown *infra.Cooldown
}

// NewHandler creates the gateway handler.
func NewHandler(e *engine.Engine, oracle *infra.PriceOracle, news *infra.NewsAggregator, cooldown *infra.Cooldown) *Handler {
	return &Handler{engine: e, oracle: oracle, news: news, cooldown: cooldown}
}

// Router builds the chi route tree.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Read-only endpoints, no account needed.
	r.Get("/price", h.CurrentPrice)
	r.Get("/chart", h.Chart)
	r.Get("/news", h.News)
	r.Get("/leaderboard", h.Leaderboard)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAccount)

		r.Post("/register", h.Register)
		r.Get("/portfolio", h.Portfolio)
		r.Get("/history", h.History)
		r.Get("/orders", h.ListOrders)

		// Mutating commands sit behind the per-caller cooldown.
		r.Group(func(r chi.Router) {
			r.Use(h.cooldownMiddleware)

			r.Post("/buy", h.Buy)
			r.Post("/sell", h.Sell)
			r.Post("/orders", h.PlaceOrder)
			r.Delete("/orders/{id}", h.CancelOrder)
			r.Delete("/orders", h.CancelAllOrders)
			r.Post("/claim", h.ClaimPrize)
			r.Post("/reset", h.ResetAccount)
			r.Delete("/account", h.DeleteAccount)
		})
	})

	return r
}

type accountKey struct{}

func contextWithAccount(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, accountKey{}, id)
}

func accountFrom(ctx context.Context) string {
	id, _ := ctx.Value(accountKey{}).(string)
	return id
}

func (h *Handler) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Account-ID")
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "X-Account-ID header required"})
			return
		}
		ctx := contextWithAccount(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cooldownMiddleware refuses rapid-fire commands per caller. Reads are
// exempt; only the mutating routes sit behind it.
func (h *Handler) cooldownMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := accountFrom(r.Context())
		if !h.cooldown.Allow(id) {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.cooldown.Remaining(id).Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "command cooldown, slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register creates the caller's account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Nickname == "" {
		badRequest(w, "nickname required")
		return
	}

	acct, err := h.engine.Register(accountFrom(r.Context()), req.Nickname)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"nickname": acct.Nickname,
		"number":   acct.Number,
		"usd":      acct.USD,
		"btc":      acct.BTC,
	})
}

// tradeRequest sizes a market trade either by an absolute amount or by a
// percentage of the balance. Exactly one of the two must be set.
type tradeRequest struct {
	Amount  string `json:"amount,omitempty"`
	Percent int    `json:"percent,omitempty"`
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.marketTrade(w, r, true)
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.marketTrade(w, r, false)
}

func (h *Handler) marketTrade(w http.ResponseWriter, r *http.Request, buy bool) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if (req.Amount == "") == (req.Percent == 0) {
		badRequest(w, "exactly one of amount or percent required")
		return
	}

	id := accountFrom(r.Context())
	var (
		tr  domain.Trade
		err error
	)
	switch {
	case req.Percent != 0 && buy:
		tr, err = h.engine.MarketBuyPercent(r.Context(), id, req.Percent)
	case req.Percent != 0:
		tr, err = h.engine.MarketSellPercent(r.Context(), id, req.Percent)
	default:
		amount, perr := money.ParsePositive(req.Amount)
		if perr != nil {
			badRequest(w, "amount must be a positive number")
			return
		}
		if buy {
			tr, err = h.engine.MarketBuy(r.Context(), id, amount)
		} else {
			tr, err = h.engine.MarketSell(r.Context(), id, amount)
		}
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// PlaceOrder admits a conditional order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind         string `json:"kind"`
		TriggerPrice string `json:"trigger_price"`
		Amount       string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	kind := domain.OrderKind(req.Kind)
	if !kind.Valid() {
		badRequest(w, "kind must be one of LIMIT_BUY, LIMIT_SELL, STOP_BUY, STOP_SELL")
		return
	}
	trigger, err := money.ParsePositive(req.TriggerPrice)
	if err != nil {
		badRequest(w, "trigger_price must be a positive number")
		return
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		badRequest(w, "amount must be a positive number")
		return
	}

	o, err := h.engine.PlaceOrder(accountFrom(r.Context()), kind, trigger, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// CancelOrder cancels one order. Unknown or foreign ids are reported as
// not cancelled rather than erroring, matching the soft semantics.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	cancelled, err := h.engine.CancelOrder(accountFrom(r.Context()), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled, "order_id": orderID})
}

// CancelAllOrders cancels every open order of the caller.
func (h *Handler) CancelAllOrders(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.CancelAllOrders(accountFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

// ListOrders returns the caller's open orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.Orders(accountFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Portfolio returns balances valued at the current quote.
func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.GetPortfolio(r.Context(), accountFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nickname":     p.Account.DisplayName(),
		"usd":          p.Account.USD,
		"btc":          p.Account.BTC,
		"price":        p.Quote.Price,
		"total_wealth": p.TotalWealth,
		"pnl":          p.PnL,
	})
}

// History returns the caller's recent trades.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	trades, err := h.engine.History(accountFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// Leaderboard returns the top standings.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.engine.Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	winner := h.engine.Winner()
	resp := map[string]any{"standings": rows}
	if winner.Announced {
		resp["winner"] = winner
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClaimPrize attempts to claim the contest prize.
func (h *Handler) ClaimPrize(w http.ResponseWriter, r *http.Request) {
	win, err := h.engine.ClaimPrize(r.Context(), accountFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

// ResetAccount wipes the caller's balances back to starting capital.
func (h *Handler) ResetAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ResetAccount(accountFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// DeleteAccount removes the caller's account entirely.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteAccount(accountFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CurrentPrice returns the oracle quote.
func (h *Handler) CurrentPrice(w http.ResponseWriter, r *http.Request) {
	q, err := h.oracle.Quote(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"price":       q.Price,
		"observed_at": q.ObservedAt.Format(time.RFC3339),
	})
}

// Chart serves candlestick data for the frontend chart.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1h"
	}
	limit := 24
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			badRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	candles, err := h.oracle.Klines(r.Context(), interval, limit)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "chart data unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candles": candles})
}

// News serves the deduplicated headline list.
func (h *Handler) News(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.news.Fetch(r.Context())})
}
