package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"btcarena/internal/domain"
	"btcarena/internal/event"
)

// Standing is one leaderboard row. Wealth and PnL are valued at the quote
// the ranking was computed against.
type Standing struct {
	Rank     int
	Nickname string
	Number   int
	Wealth   decimal.Decimal
	PnL      decimal.Decimal
}

// rank orders accounts by total wealth descending and returns at most n
// rows. Ties keep registration order, so an older account never drops
// below a newer one with equal wealth.
func rank(accounts []*domain.Account, price decimal.Decimal, n int) []Standing {
	rows := make([]Standing, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, Standing{
			Nickname: a.DisplayName(),
			Number:   a.Number,
			Wealth:   a.TotalWealth(price),
			PnL:      a.PnL(price),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Wealth.GreaterThan(rows[j].Wealth)
	})
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// Leaderboard values every account at the current quote and returns the
// top rows, capped by LeaderboardSize.
func (e *Engine) Leaderboard(ctx context.Context) ([]Standing, error) {
	quote, err := e.oracle.Quote(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastQuote = &quote
	return rank(e.ledger.All(), quote.Price, e.cfg.LeaderboardSize), nil
}

// ClaimPrize declares the caller the winner if their profit at the current
// quote meets the prize threshold. The prize is a one-shot latch: the first
// successful claim sticks, and every later claim fails with
// ErrAlreadyClaimed no matter whose PnL is higher now.
func (e *Engine) ClaimPrize(ctx context.Context, accountID string) (domain.WinnerState, error) {
	quote, err := e.oracle.Quote(ctx)
	if err != nil {
		return domain.WinnerState{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastQuote = &quote

	if e.winner.Announced {
		return e.winner, domain.ErrAlreadyClaimed
	}

	acct, ok := e.ledger.Get(accountID)
	if !ok {
		return domain.WinnerState{}, domain.ErrNotRegistered
	}

	pnl := acct.PnL(quote.Price)
	if pnl.LessThan(e.cfg.PrizeThreshold) {
		return domain.WinnerState{}, fmt.Errorf("profit %s below threshold %s: %w",
			pnl.StringFixed(2), e.cfg.PrizeThreshold.StringFixed(2), domain.ErrPnLBelowThreshold)
	}

	now := time.Now()
	e.winner = domain.WinnerState{
		AccountID: accountID,
		Announced: true,
		PnL:       pnl,
		ClaimedAt: now,
	}

	slog.Info("winner declared",
		slog.String("account", accountID),
		slog.String("nickname", acct.DisplayName()),
		slog.String("pnl", pnl.StringFixed(2)))
	e.notifier.Notify(event.WinnerDeclaredEvent{
		BaseEvent: event.BaseEvent{AccountID: accountID, Ts: now},
		Nickname:  acct.DisplayName(),
		PnL:       pnl,
	})

	if err := e.persistLocked(); err != nil {
		return e.winner, err
	}
	return e.winner, nil
}
