package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"btcarena/internal/domain"
	"btcarena/pkg/money"
)

// Ledger is the source of truth for account balances and trade history.
// It is not safe for concurrent use; the Engine serializes access.
type Ledger struct {
	accounts map[string]*domain.Account
	order    []string // account ids in registration order, the ranking tie-break
	nextNum  int

	startingCapital decimal.Decimal
	feeRate         decimal.Decimal // fraction, e.g. 0.001 for 0.1%
	minTradeUSD     decimal.Decimal
}

// NewLedger creates an empty ledger with the given trading parameters.
func NewLedger(startingCapital, feeRate, minTradeUSD decimal.Decimal) *Ledger {
	return &Ledger{
		accounts:        make(map[string]*domain.Account),
		nextNum:         1,
		startingCapital: startingCapital,
		feeRate:         feeRate,
		minTradeUSD:     minTradeUSD,
	}
}

// Register creates an account with the starting capital. Nicknames are
// unique case-insensitively across all accounts.
func (l *Ledger) Register(id, nickname string, now time.Time) (*domain.Account, error) {
	if _, ok := l.accounts[id]; ok {
		return nil, domain.ErrAlreadyRegistered
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("%w: empty nickname", domain.ErrInvalidAmount)
	}
	for _, a := range l.accounts {
		if strings.EqualFold(a.Nickname, nickname) {
			return nil, domain.ErrNicknameTaken
		}
	}

	acct := &domain.Account{
		ID:              id,
		Nickname:        nickname,
		Number:          l.nextNum,
		USD:             l.startingCapital,
		BTC:             decimal.Zero,
		Trades:          []domain.Trade{},
		StartingCapital: l.startingCapital,
		CreatedAt:       now,
	}
	l.nextNum++
	l.accounts[id] = acct
	l.order = append(l.order, id)
	return acct, nil
}

// Get returns the account for id, if registered.
func (l *Ledger) Get(id string) (*domain.Account, bool) {
	a, ok := l.accounts[id]
	return a, ok
}

// All returns every account in registration order.
func (l *Ledger) All() []*domain.Account {
	out := make([]*domain.Account, 0, len(l.order))
	for _, id := range l.order {
		if a, ok := l.accounts[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Reset wipes balances and trade history and re-grants the starting capital.
func (l *Ledger) Reset(id string, now time.Time) error {
	a, ok := l.accounts[id]
	if !ok {
		return domain.ErrNotRegistered
	}
	a.USD = l.startingCapital
	a.BTC = decimal.Zero
	a.Trades = []domain.Trade{}
	a.StartingCapital = l.startingCapital
	return nil
}

// Delete removes the account. The caller is responsible for also removing
// its open orders from the book.
func (l *Ledger) Delete(id string) bool {
	if _, ok := l.accounts[id]; !ok {
		return false
	}
	delete(l.accounts, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// Credit applies a signed adjustment to both balances, atomically: either
// both deltas commit or neither does. The Ledger is the final authority on
// overdrafts even when callers pre-check.
func (l *Ledger) Credit(id string, usdDelta, btcDelta decimal.Decimal) error {
	a, ok := l.accounts[id]
	if !ok {
		return domain.ErrNotRegistered
	}
	usd := a.USD.Add(usdDelta)
	btc := a.BTC.Add(btcDelta)
	if usd.IsNegative() {
		return domain.ErrInsufficientFunds
	}
	if btc.IsNegative() {
		return domain.ErrInsufficientHoldings
	}
	a.USD = usd
	a.BTC = btc
	return nil
}

// RecordTrade appends to the account's history. It never touches balances;
// callers pair it with Credit.
func (l *Ledger) RecordTrade(id string, tr domain.Trade) error {
	a, ok := l.accounts[id]
	if !ok {
		return domain.ErrNotRegistered
	}
	a.Trades = append(a.Trades, tr)
	return nil
}

// MarketTrade fills an order against the quote immediately.
//
// Sizing follows the command surface: buys are sized by the USD spent,
// sells by the BTC sold. The fee is always taken in USD — a buy converts
// amount*(1-fee) at the fill price, a sell credits proceeds*(1-fee). BTC
// bought is truncated at satoshi resolution so rounding never mints funds.
func (l *Ledger) MarketTrade(id string, side domain.TradeSide, amount decimal.Decimal, quote domain.Quote, now time.Time) (domain.Trade, error) {
	a, ok := l.accounts[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotRegistered
	}
	if !amount.IsPositive() {
		return domain.Trade{}, domain.ErrInvalidAmount
	}
	if !quote.Price.IsPositive() {
		return domain.Trade{}, domain.ErrPriceUnavailable
	}

	feeKeep := decimal.New(1, 0).Sub(l.feeRate)

	var tr domain.Trade
	switch side {
	case domain.SideBuy:
		usdSpent := amount
		if usdSpent.LessThan(l.minTradeUSD) {
			return domain.Trade{}, fmt.Errorf("%w: minimum is $%s", domain.ErrBelowMinTrade, money.FormatUSD(l.minTradeUSD))
		}
		if a.USD.LessThan(usdSpent) {
			return domain.Trade{}, domain.ErrInsufficientFunds
		}
		btcBought := usdSpent.Mul(feeKeep).Div(quote.Price).Truncate(money.BTCPlaces)
		a.USD = a.USD.Sub(usdSpent)
		a.BTC = a.BTC.Add(btcBought)
		tr = domain.Trade{Side: domain.SideBuy, BTC: btcBought, USD: usdSpent, Price: quote.Price, FeePct: l.feeRate.Mul(decimal.New(100, 0)), Timestamp: now}

	case domain.SideSell:
		btcSold := amount
		gross := btcSold.Mul(quote.Price)
		if gross.LessThan(l.minTradeUSD) {
			return domain.Trade{}, fmt.Errorf("%w: minimum is $%s", domain.ErrBelowMinTrade, money.FormatUSD(l.minTradeUSD))
		}
		if a.BTC.LessThan(btcSold) {
			return domain.Trade{}, domain.ErrInsufficientHoldings
		}
		netUSD := gross.Mul(feeKeep)
		a.BTC = a.BTC.Sub(btcSold)
		a.USD = a.USD.Add(netUSD)
		tr = domain.Trade{Side: domain.SideSell, BTC: btcSold, USD: netUSD, Price: quote.Price, FeePct: l.feeRate.Mul(decimal.New(100, 0)), Timestamp: now}

	default:
		return domain.Trade{}, fmt.Errorf("%w: unknown side %q", domain.ErrInvalidAmount, side)
	}

	a.Trades = append(a.Trades, tr)
	return tr, nil
}

// Restore replaces the ledger contents from a persisted snapshot. Accounts
// are re-ordered by registration number so ranking ties stay deterministic
// across restarts.
func (l *Ledger) Restore(accounts map[string]*domain.Account) {
	l.accounts = make(map[string]*domain.Account, len(accounts))
	l.order = l.order[:0]
	maxNum := 0
	for id, a := range accounts {
		l.accounts[id] = a
		l.order = append(l.order, id)
		if a.Number > maxNum {
			maxNum = a.Number
		}
	}
	sort.Slice(l.order, func(i, j int) bool {
		return l.accounts[l.order[i]].Number < l.accounts[l.order[j]].Number
	})
	l.nextNum = maxNum + 1
}
