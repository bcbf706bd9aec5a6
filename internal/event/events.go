package event

import (
	"time"

	"github.com/shopspring/decimal"

	"btcarena/internal/domain"
)

// Type defines the type of event.
type Type uint16

const (
	EvAccountRegistered Type = iota + 1
	EvTradeExecuted
	EvOrderPlaced
	EvOrderCancelled
	EvOrderExecuted
	EvOrderSkipped
	EvWinnerDeclared
)

func (t Type) String() string {
	switch t {
	case EvAccountRegistered:
		return "ACCOUNT_REGISTERED"
	case EvTradeExecuted:
		return "TRADE_EXECUTED"
	case EvOrderPlaced:
		return "ORDER_PLACED"
	case EvOrderCancelled:
		return "ORDER_CANCELLED"
	case EvOrderExecuted:
		return "ORDER_EXECUTED"
	case EvOrderSkipped:
		return "ORDER_SKIPPED"
	case EvWinnerDeclared:
		return "WINNER_DECLARED"
	default:
		return "UNKNOWN"
	}
}

// Event is the interface for all engine notifications.
type Event interface {
	GetType() Type
	GetTs() time.Time
	GetAccountID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	AccountID string    `json:"account_id"`
	Ts        time.Time `json:"ts"`
}

func (e BaseEvent) GetTs() time.Time     { return e.Ts }
func (e BaseEvent) GetAccountID() string { return e.AccountID }

// AccountRegisteredEvent is emitted once per successful registration.
type AccountRegisteredEvent struct {
	BaseEvent
	Nickname string `json:"nickname"`
	Number   int    `json:"number"`
}

func (e AccountRegisteredEvent) GetType() Type { return EvAccountRegistered }

// TradeExecutedEvent is emitted for every committed trade, market or
// conditional.
type TradeExecutedEvent struct {
	BaseEvent
	Trade domain.Trade `json:"trade"`
}

func (e TradeExecutedEvent) GetType() Type { return EvTradeExecuted }

// OrderPlacedEvent is emitted when a conditional order is admitted.
type OrderPlacedEvent struct {
	BaseEvent
	Order domain.ConditionalOrder `json:"order"`
}

func (e OrderPlacedEvent) GetType() Type { return EvOrderPlaced }

// OrderCancelledEvent is emitted per explicitly cancelled order.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

func (e OrderCancelledEvent) GetType() Type { return EvOrderCancelled }

// OrderExecutedEvent reports a conditional order filled by the scan, at the
// current quote rather than the trigger price.
type OrderExecutedEvent struct {
	BaseEvent
	Order     domain.ConditionalOrder `json:"order"`
	FillPrice decimal.Decimal         `json:"fill_price"`
}

func (e OrderExecutedEvent) GetType() Type { return EvOrderExecuted }

// OrderSkippedEvent reports a triggered order dropped for the given reason.
// The order is gone either way, so the owner must be told.
type OrderSkippedEvent struct {
	BaseEvent
	Order  domain.ConditionalOrder `json:"order"`
	Reason string                  `json:"reason"`
}

func (e OrderSkippedEvent) GetType() Type { return EvOrderSkipped }

// WinnerDeclaredEvent is emitted exactly once, when the prize latch is set.
type WinnerDeclaredEvent struct {
	BaseEvent
	Nickname string          `json:"nickname"`
	PnL      decimal.Decimal `json:"pnl"`
}

func (e WinnerDeclaredEvent) GetType() Type { return EvWinnerDeclared }
