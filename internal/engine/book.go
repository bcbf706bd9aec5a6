package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"btcarena/internal/domain"
)

// OrderBook stores open conditional orders by id. It is a dumb store by
// design: reservation and positivity checks live with the caller, so the
// book itself never rejects anything beyond ownership on cancel.
// Not safe for concurrent use; the Engine serializes access.
type OrderBook struct {
	orders map[string]*domain.ConditionalOrder
}

// NewOrderBook creates an empty book.
func NewOrderBook() *OrderBook {
	return &OrderBook{orders: make(map[string]*domain.ConditionalOrder)}
}

// Place stores the order under a fresh id and returns it.
func (b *OrderBook) Place(o *domain.ConditionalOrder) string {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	b.orders[o.ID] = o
	return o.ID
}

// Get looks up an order by id.
func (b *OrderBook) Get(id string) (*domain.ConditionalOrder, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Remove deletes an order unconditionally. Used by the matcher, which owns
// every order it visits regardless of execution outcome.
func (b *OrderBook) Remove(id string) {
	delete(b.orders, id)
}

// Cancel removes the order iff it exists and belongs to accountID. A miss
// is a soft failure: false, never an error.
func (b *OrderBook) Cancel(accountID, orderID string) bool {
	o, ok := b.orders[orderID]
	if !ok || o.AccountID != accountID {
		return false
	}
	delete(b.orders, orderID)
	return true
}

// CancelAll removes every order owned by the account and returns how many.
func (b *OrderBook) CancelAll(accountID string) int {
	n := 0
	for id, o := range b.orders {
		if o.AccountID == accountID {
			delete(b.orders, id)
			n++
		}
	}
	return n
}

// ListFor returns the account's open orders, oldest first for display.
func (b *OrderBook) ListFor(accountID string) []*domain.ConditionalOrder {
	var out []*domain.ConditionalOrder
	for _, o := range b.orders {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	sortByCreation(out)
	return out
}

// AllOpenOrdersByCreationOrder returns every open order across all
// accounts, createdAt ascending. This FIFO is the tie-break the matcher
// relies on: earlier orders compete for scarce funds first.
func (b *OrderBook) AllOpenOrdersByCreationOrder() []*domain.ConditionalOrder {
	out := make([]*domain.ConditionalOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	sortByCreation(out)
	return out
}

// Len reports the number of open orders.
func (b *OrderBook) Len() int {
	return len(b.orders)
}

// Restore replaces the book contents from a persisted snapshot.
func (b *OrderBook) Restore(orders map[string]*domain.ConditionalOrder) {
	b.orders = make(map[string]*domain.ConditionalOrder, len(orders))
	for id, o := range orders {
		b.orders[id] = o
	}
}

// Snapshot returns a copy of the order map for persistence.
func (b *OrderBook) Snapshot() map[string]*domain.ConditionalOrder {
	out := make(map[string]*domain.ConditionalOrder, len(b.orders))
	for id, o := range b.orders {
		cp := *o
		out[id] = &cp
	}
	return out
}

func sortByCreation(orders []*domain.ConditionalOrder) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

// ReservedUSD sums the quote amounts of the account's open buy-kind orders.
// Reservation is advisory accounting, not an escrow: nothing is locked, so
// the matcher still re-checks real funds at execution time.
func ReservedUSD(b *OrderBook, accountID string) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range b.orders {
		if o.AccountID == accountID && o.Kind.IsBuy() {
			sum = sum.Add(o.QuoteAmount)
		}
	}
	return sum
}

// ReservedBTC sums the base amounts of the account's open sell-kind orders.
func ReservedBTC(b *OrderBook, accountID string) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range b.orders {
		if o.AccountID == accountID && o.Kind.IsSell() {
			sum = sum.Add(o.BaseAmount)
		}
	}
	return sum
}
