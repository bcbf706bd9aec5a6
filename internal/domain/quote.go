package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest known price from the oracle.
type Quote struct {
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Fresh reports whether the quote is still inside the cache TTL.
func (q Quote) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(q.ObservedAt) < ttl
}

// WinnerState is the one-shot prize latch. Once Announced is set it never
// resets; later qualifying accounts are told the prize is claimed.
type WinnerState struct {
	AccountID string          `json:"account_id,omitempty"`
	Announced bool            `json:"announced"`
	PnL       decimal.Decimal `json:"pnl"`
	ClaimedAt time.Time       `json:"claimed_at,omitempty"`
}
