package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"btcarena/internal/domain"
	"btcarena/internal/event"
	"btcarena/internal/storage"
	"btcarena/pkg/money"
)

// QuoteSource supplies the current market quote. Implementations cache with
// a TTL and fall back to the last known value on fetch failure.
type QuoteSource interface {
	Quote(ctx context.Context) (domain.Quote, error)
}

// Config holds the trading parameters.
type Config struct {
	StartingCapital decimal.Decimal
	FeeRate         decimal.Decimal // fraction, e.g. 0.001 for 0.1%
	MinTradeUSD     decimal.Decimal
	PrizeThreshold  decimal.Decimal // PnL required to claim the prize
	LeaderboardSize int
	HistorySize     int
}

// DefaultConfig matches the live contest parameters: $100k starting
// capital, 0.1% fee, $1 minimum trade, $3k prize threshold.
func DefaultConfig() Config {
	return Config{
		StartingCapital: decimal.NewFromInt(100000),
		FeeRate:         decimal.RequireFromString("0.001"),
		MinTradeUSD:     decimal.NewFromInt(1),
		PrizeThreshold:  decimal.NewFromInt(3000),
		LeaderboardSize: 50,
		HistorySize:     15,
	}
}

// Engine owns the Ledger, the OrderBook and the winner latch behind a
// single mutex: every command and every scan cycle runs to completion
// under it. Quote fetches are the only slow work and always happen outside
// the lock.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	ledger *Ledger
	book   *OrderBook
	winner domain.WinnerState

	lastQuote *domain.Quote // last quote seen by a scan, persisted for restarts

	store    storage.Store
	oracle   QuoteSource
	notifier event.Notifier
}

// New builds an engine and restores state from the store.
func New(cfg Config, store storage.Store, oracle QuoteSource, notifier event.Notifier) (*Engine, error) {
	if notifier == nil {
		notifier = event.NopNotifier{}
	}
	e := &Engine{
		cfg:      cfg,
		ledger:   NewLedger(cfg.StartingCapital, cfg.FeeRate, cfg.MinTradeUSD),
		book:     NewOrderBook(),
		store:    store,
		oracle:   oracle,
		notifier: notifier,
	}

	snap, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	e.ledger.Restore(snap.Accounts)
	e.book.Restore(snap.Orders)
	e.winner = snap.Winner
	e.lastQuote = snap.LastQuote

	slog.Info("engine state restored",
		slog.Int("accounts", len(snap.Accounts)),
		slog.Int("orders", len(snap.Orders)),
		slog.Bool("winner_declared", e.winner.Announced))
	return e, nil
}

// persistLocked saves the whole state. Must be called with e.mu held. The
// mutation that triggered the save stands even when the save fails: the
// in-memory state is the read-after-write source of truth, durability is
// at-most-eventually-consistent.
func (e *Engine) persistLocked() error {
	snap := storage.Snapshot{
		Accounts:  e.accountsSnapshotLocked(),
		Orders:    e.book.Snapshot(),
		Winner:    e.winner,
		LastQuote: e.lastQuote,
	}
	if err := e.store.Save(snap); err != nil {
		slog.Error("state save failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (e *Engine) accountsSnapshotLocked() map[string]*domain.Account {
	out := make(map[string]*domain.Account)
	for _, a := range e.ledger.All() {
		out[a.ID] = a.Clone()
	}
	return out
}

// Register creates an account with a unique nickname.
func (e *Engine) Register(id, nickname string) (*domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.ledger.Register(id, nickname, time.Now())
	if err != nil {
		return nil, err
	}
	e.notifier.Notify(event.AccountRegisteredEvent{
		BaseEvent: event.BaseEvent{AccountID: id, Ts: acct.CreatedAt},
		Nickname:  acct.Nickname,
		Number:    acct.Number,
	})
	if err := e.persistLocked(); err != nil {
		return acct.Clone(), err
	}
	return acct.Clone(), nil
}

// ResetAccount wipes balances and history and re-grants starting capital.
// Open orders are cancelled too: they could otherwise reserve wiped funds.
func (e *Engine) ResetAccount(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.Reset(id, time.Now()); err != nil {
		return err
	}
	e.book.CancelAll(id)
	return e.persistLocked()
}

// DeleteAccount removes the account and every open order it owns.
func (e *Engine) DeleteAccount(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ledger.Delete(id) {
		return domain.ErrNotRegistered
	}
	e.book.CancelAll(id)
	return e.persistLocked()
}

// MarketBuy spends usdAmount at the current quote.
func (e *Engine) MarketBuy(ctx context.Context, id string, usdAmount decimal.Decimal) (domain.Trade, error) {
	quote, err := e.oracle.Quote(ctx)
	if err != nil {
		return domain.Trade{}, err
	}
	return e.marketTrade(id, domain.SideBuy, usdAmount, quote)
}

// MarketBuyPercent spends pct% of the USD balance.
func (e *Engine) MarketBuyPercent(ctx context.Context, id string, pct int) (domain.Trade, error) {
	quote, err := e.oracle.Quote(ctx)
	if err != nil {
		return domain.Trade{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.ledger.Get(id)
	if !ok {
		return domain.Trade{}, domain.ErrNotRegistered
	}
	amount, err := percentOf(acct.USD, pct)
	if err != nil {
		return domain.Trade{}, err
	}
	return e.marketTradeLocked(id, domain.SideBuy, amount, quote)
}

// MarketSell sells btcAmount at the current quote.
func (e *Engine) MarketSell(ctx context.Context, id string, btcAmount decimal.Decimal) (domain.Trade, error) {
	quote, err := e.oracle.Quote(ctx)
	if err != nil {
		return domain.Trade{}, err
	}
	return e.marketTrade(id, domain.SideSell, btcAmount, quote)
}

// MarketSellPercent sells pct% of the BTC balance.
func (e *Engine) MarketSellPercent(ctx context.Context, id string, pct int) (domain.Trade, error) {
	quote, err := e.oracle.Quote(ctx)
	if err != nil {
		return domain.Trade{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.ledger.Get(id)
	if !ok {
		return domain.Trade{}, domain.ErrNotRegistered
	}
	amount, err := percentOf(acct.BTC, pct)
	if err != nil {
		return domain.Trade{}, err
	}
	return e.marketTradeLocked(id, domain.SideSell, amount, quote)
}

func (e *Engine) marketTrade(id string, side domain.TradeSide, amount decimal.Decimal, quote domain.Quote) (domain.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.marketTradeLocked(id, side, amount, quote)
}

func (e *Engine) marketTradeLocked(id string, side domain.TradeSide, amount decimal.Decimal, quote domain.Quote) (domain.Trade, error) {
	tr, err := e.ledger.MarketTrade(id, side, amount, quote, time.Now())
	if err != nil {
		return domain.Trade{}, err
	}
	e.notifier.Notify(event.TradeExecutedEvent{
		BaseEvent: event.BaseEvent{AccountID: id, Ts: tr.Timestamp},
		Trade:     tr,
	})
	if err := e.persistLocked(); err != nil {
		return tr, err
	}
	return tr, nil
}

// PlaceOrder admits a conditional order. Buys are sized by USD amount,
// sells by BTC amount; the admission check includes funds already reserved
// by the account's other open orders. The check happens only here —
// balances are never escrowed, so execution re-checks funds later.
func (e *Engine) PlaceOrder(id string, kind domain.OrderKind, triggerPrice, amount decimal.Decimal) (*domain.ConditionalOrder, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown order kind %q", domain.ErrInvalidAmount, kind)
	}
	if !triggerPrice.IsPositive() || !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.ledger.Get(id)
	if !ok {
		return nil, domain.ErrNotRegistered
	}

	var baseAmount, quoteAmount decimal.Decimal
	if kind.IsBuy() {
		quoteAmount = amount
		baseAmount = amount.Div(triggerPrice).Truncate(8)
		if quoteAmount.Add(ReservedUSD(e.book, id)).GreaterThan(acct.USD) {
			return nil, fmt.Errorf("%w (including funds reserved by open orders)", domain.ErrInsufficientFunds)
		}
	} else {
		baseAmount = amount
		quoteAmount = amount.Mul(triggerPrice)
		if baseAmount.Add(ReservedBTC(e.book, id)).GreaterThan(acct.BTC) {
			return nil, fmt.Errorf("%w (including funds reserved by open orders)", domain.ErrInsufficientHoldings)
		}
	}

	o := &domain.ConditionalOrder{
		AccountID:    id,
		Kind:         kind,
		TriggerPrice: triggerPrice,
		BaseAmount:   baseAmount,
		QuoteAmount:  quoteAmount,
		CreatedAt:    time.Now(),
	}
	e.book.Place(o)
	e.notifier.Notify(event.OrderPlacedEvent{
		BaseEvent: event.BaseEvent{AccountID: id, Ts: o.CreatedAt},
		Order:     *o,
	})
	if err := e.persistLocked(); err != nil {
		return o, err
	}
	return o, nil
}

// CancelOrder removes one order if it belongs to the account. Not finding
// it (or not owning it) is a soft miss, not an error.
func (e *Engine) CancelOrder(id, orderID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.book.Cancel(id, orderID) {
		return false, nil
	}
	e.notifier.Notify(event.OrderCancelledEvent{
		BaseEvent: event.BaseEvent{AccountID: id, Ts: time.Now()},
		OrderID:   orderID,
	})
	return true, e.persistLocked()
}

// CancelAllOrders removes every open order for the account.
func (e *Engine) CancelAllOrders(id string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.book.CancelAll(id)
	if n == 0 {
		return 0, nil
	}
	return n, e.persistLocked()
}

// Orders lists the account's open orders.
func (e *Engine) Orders(id string) ([]*domain.ConditionalOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.ledger.Get(id); !ok {
		return nil, domain.ErrNotRegistered
	}
	orders := e.book.ListFor(id)
	out := make([]*domain.ConditionalOrder, len(orders))
	for i, o := range orders {
		cp := *o
		out[i] = &cp
	}
	return out, nil
}

// Portfolio is an account's balances valued at the current quote.
type Portfolio struct {
	Account     *domain.Account
	Quote       domain.Quote
	TotalWealth decimal.Decimal
	PnL         decimal.Decimal
}

// GetPortfolio returns the account valued at the current quote.
func (e *Engine) GetPortfolio(ctx context.Context, id string) (Portfolio, error) {
	quote, err := e.oracle.Quote(ctx)
	if err != nil {
		return Portfolio{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.ledger.Get(id)
	if !ok {
		return Portfolio{}, domain.ErrNotRegistered
	}
	return Portfolio{
		Account:     acct.Clone(),
		Quote:       quote,
		TotalWealth: acct.TotalWealth(quote.Price),
		PnL:         acct.PnL(quote.Price),
	}, nil
}

// History returns the account's most recent trades, oldest first, capped
// at the configured history size.
func (e *Engine) History(id string) ([]domain.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.ledger.Get(id)
	if !ok {
		return nil, domain.ErrNotRegistered
	}
	trades := acct.Trades
	if len(trades) > e.cfg.HistorySize {
		trades = trades[len(trades)-e.cfg.HistorySize:]
	}
	out := make([]domain.Trade, len(trades))
	copy(out, trades)
	return out, nil
}

// Winner returns the current prize latch state.
func (e *Engine) Winner() domain.WinnerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.winner
}

func percentOf(total decimal.Decimal, pct int) (decimal.Decimal, error) {
	amt, err := money.Percent(total, pct)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %d%%", domain.ErrInvalidAmount, pct)
	}
	return amt, nil
}
