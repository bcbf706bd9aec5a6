package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide identifies the direction of an executed trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Trade is one executed-trade record. History is append-only: records are
// never mutated or reordered.
type Trade struct {
	Side      TradeSide       `json:"side"`
	BTC       decimal.Decimal `json:"btc"`     // base amount moved
	USD       decimal.Decimal `json:"usd"`     // quote amount moved (net of fee on sells)
	Price     decimal.Decimal `json:"price"`   // fill price
	FeePct    decimal.Decimal `json:"fee_pct"` // fee percentage at execution time
	Timestamp time.Time       `json:"timestamp"`
}

// Account is a registered participant. Balances are non-negative after
// every committed mutation; the Ledger owns all writes.
type Account struct {
	ID              string          `json:"id"`
	Nickname        string          `json:"nickname"`
	Number          int             `json:"number"` // registration ordinal, used for display fallback
	USD             decimal.Decimal `json:"usd"`
	BTC             decimal.Decimal `json:"btc"`
	Trades          []Trade         `json:"trades"`
	StartingCapital decimal.Decimal `json:"starting_capital"` // fixed at registration
	CreatedAt       time.Time       `json:"created_at"`
}

// TotalWealth values the account at the given price: usd + btc*price.
func (a *Account) TotalWealth(price decimal.Decimal) decimal.Decimal {
	return a.USD.Add(a.BTC.Mul(price))
}

// PnL is total wealth minus the starting capital.
func (a *Account) PnL(price decimal.Decimal) decimal.Decimal {
	return a.TotalWealth(price).Sub(a.StartingCapital)
}

// DisplayName returns the nickname, or a numbered fallback for accounts
// that somehow lost one.
func (a *Account) DisplayName() string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return "Trader " + strconv.Itoa(a.Number)
}

// Clone returns a deep copy safe to hand outside the engine lock.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Trades = make([]Trade, len(a.Trades))
	copy(cp.Trades, a.Trades)
	return &cp
}
