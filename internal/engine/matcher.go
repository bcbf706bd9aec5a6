package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"btcarena/internal/domain"
	"btcarena/internal/event"
)

// Scan runs one matching cycle: fetch the quote, walk every open order in
// creation order, execute the triggered ones at the current quote, and
// remove each triggered order whether it filled or was skipped. There is
// no retry queue — a skipped order is gone, and the owner is notified of
// the skip reason through the notifier.
//
// Returns the ids of executed orders. A quote failure skips the whole
// cycle; per-order failures are isolated and never abort the scan.
func (e *Engine) Scan(ctx context.Context) ([]string, error) {
	quote, err := e.oracle.Quote(ctx) // slow path, outside the lock
	if err != nil {
		return nil, fmt.Errorf("scan cycle skipped: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastQuote = &quote

	var executed []string
	changed := false

	for _, o := range e.book.AllOpenOrdersByCreationOrder() {
		if !o.ShouldTrigger(quote.Price) {
			continue
		}

		// Triggered: the order is consumed now regardless of outcome.
		e.book.Remove(o.ID)
		changed = true

		if e.executeOrder(o, quote) {
			executed = append(executed, o.ID)
		}
	}

	if changed {
		// One save per cycle, not per order.
		if err := e.persistLocked(); err != nil {
			slog.Error("scan persist failed", slog.Any("error", err))
		}
	}

	if len(executed) > 0 {
		slog.Info("scan cycle done",
			slog.String("price", quote.Price.String()),
			slog.Int("executed", len(executed)),
			slog.Int("open", e.book.Len()))
	}
	return executed, nil
}

// executeOrder fills one triggered order through the ledger at the current
// quote. Reported funds are re-checked here, at execution time — the
// placement-time reservation is advisory only. Panics are contained so one
// bad order cannot take down the rest of the cycle.
func (e *Engine) executeOrder(o *domain.ConditionalOrder, quote domain.Quote) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("order execution panic",
				slog.String("order", o.ID),
				slog.Any("panic", r))
			ok = false
		}
	}()

	var amount = o.QuoteAmount
	side := domain.SideBuy
	if o.Kind.IsSell() {
		amount = o.BaseAmount
		side = domain.SideSell
	}

	tr, err := e.ledger.MarketTrade(o.AccountID, side, amount, quote, time.Now())
	if err != nil {
		reason := skipReason(err)
		slog.Warn("order skipped",
			slog.String("order", o.ID),
			slog.String("account", o.AccountID),
			slog.String("kind", string(o.Kind)),
			slog.String("reason", reason))
		e.notifier.Notify(event.OrderSkippedEvent{
			BaseEvent: event.BaseEvent{AccountID: o.AccountID, Ts: time.Now()},
			Order:     *o,
			Reason:    reason,
		})
		return false
	}

	e.notifier.Notify(event.OrderExecutedEvent{
		BaseEvent: event.BaseEvent{AccountID: o.AccountID, Ts: tr.Timestamp},
		Order:     *o,
		FillPrice: quote.Price,
	})
	e.notifier.Notify(event.TradeExecutedEvent{
		BaseEvent: event.BaseEvent{AccountID: o.AccountID, Ts: tr.Timestamp},
		Trade:     tr,
	})
	return true
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "not enough USD"
	case errors.Is(err, domain.ErrInsufficientHoldings):
		return "not enough BTC"
	case errors.Is(err, domain.ErrBelowMinTrade):
		return "below minimum trade size"
	case errors.Is(err, domain.ErrNotRegistered):
		return "account no longer exists"
	default:
		return err.Error()
	}
}

// RunScanLoop runs Scan on a fixed interval until ctx is cancelled. The
// first scan fires after initialDelay so startup (price cache warm-up,
// snapshot restore) settles first.
func (e *Engine) RunScanLoop(ctx context.Context, interval, initialDelay time.Duration) {
	slog.Info("matching scan loop started",
		slog.Duration("interval", interval),
		slog.Duration("initial_delay", initialDelay))

	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := e.Scan(ctx); err != nil {
			slog.Warn("scan cycle failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			slog.Info("matching scan loop stopped")
			return
		case <-ticker.C:
		}
	}
}
