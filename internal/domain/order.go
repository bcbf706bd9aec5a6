package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind classifies a conditional order.
type OrderKind string

const (
	KindLimitBuy  OrderKind = "LIMIT_BUY"
	KindLimitSell OrderKind = "LIMIT_SELL"
	KindStopBuy   OrderKind = "STOP_BUY"
	KindStopSell  OrderKind = "STOP_SELL"
)

// IsBuy reports whether the kind spends USD when it fills.
func (k OrderKind) IsBuy() bool {
	return k == KindLimitBuy || k == KindStopBuy
}

// IsSell reports whether the kind spends BTC when it fills.
func (k OrderKind) IsSell() bool {
	return k == KindLimitSell || k == KindStopSell
}

// Valid reports whether k is one of the four known kinds.
func (k OrderKind) Valid() bool {
	return k.IsBuy() || k.IsSell()
}

// ConditionalOrder is a limit or stop order stored for later evaluation.
// Both BaseAmount (BTC) and QuoteAmount (USD) are recorded at creation:
// buys are sized in USD, sells in BTC, and the redundant field is kept
// consistent (QuoteAmount = BaseAmount * TriggerPrice) for display and
// reservation accounting.
type ConditionalOrder struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Kind         OrderKind       `json:"kind"`
	TriggerPrice decimal.Decimal `json:"trigger_price"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	QuoteAmount  decimal.Decimal `json:"quote_amount"`
	CreatedAt    time.Time       `json:"created_at"` // FIFO tie-break for the scan
}

// ShouldTrigger evaluates the trigger predicate against the current price.
// Limit orders fire on favorable crossings, stop orders on adverse ones.
func (o *ConditionalOrder) ShouldTrigger(price decimal.Decimal) bool {
	switch o.Kind {
	case KindLimitBuy:
		return price.LessThanOrEqual(o.TriggerPrice)
	case KindLimitSell:
		return price.GreaterThanOrEqual(o.TriggerPrice)
	case KindStopBuy:
		return price.GreaterThanOrEqual(o.TriggerPrice)
	case KindStopSell:
		return price.LessThanOrEqual(o.TriggerPrice)
	default:
		return false
	}
}
