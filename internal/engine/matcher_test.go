package engine

import (
	"context"
	"errors"
	"testing"

	"btcarena/internal/domain"
)

func TestScanTriggersByKind(t *testing.T) {
	tests := []struct {
		name      string
		kind      domain.OrderKind
		trigger   string
		scanPrice string
		wantFill  bool
	}{
		{"limit buy fills at or below trigger", domain.KindLimitBuy, "45000", "45000", true},
		{"limit buy waits above trigger", domain.KindLimitBuy, "45000", "45001", false},
		{"limit sell fills at or above trigger", domain.KindLimitSell, "55000", "55000", true},
		{"limit sell waits below trigger", domain.KindLimitSell, "55000", "54999", false},
		{"stop buy fills at or above trigger", domain.KindStopBuy, "55000", "56000", true},
		{"stop buy waits below trigger", domain.KindStopBuy, "55000", "54000", false},
		{"stop sell fills at or below trigger", domain.KindStopSell, "45000", "44000", true},
		{"stop sell waits above trigger", domain.KindStopSell, "45000", "46000", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, oracle, _ := newTestEngine(t, "50000")
			ctx := context.Background()
			e.Register("u1", "alice")

			amount := d("1000") // USD for buys
			if tc.kind.IsSell() {
				e.MarketBuy(ctx, "u1", d("10000"))
				amount = d("0.01") // BTC for sells
			}
			o, err := e.PlaceOrder("u1", tc.kind, d(tc.trigger), amount)
			if err != nil {
				t.Fatalf("place: %v", err)
			}

			oracle.price = d(tc.scanPrice)
			executed, err := e.Scan(ctx)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}

			if tc.wantFill {
				if len(executed) != 1 || executed[0] != o.ID {
					t.Fatalf("executed = %v, want [%s]", executed, o.ID)
				}
				if e.book.Len() != 0 {
					t.Error("filled order still open")
				}
			} else {
				if len(executed) != 0 {
					t.Fatalf("executed = %v, want none", executed)
				}
				if e.book.Len() != 1 {
					t.Error("untriggered order removed from book")
				}
			}
		})
	}
}

func TestScanRemovesSkippedOrders(t *testing.T) {
	e, oracle, _ := newTestEngine(t, "60000")
	ctx := context.Background()
	e.Register("u1", "alice")

	// Reservation admitted against a full balance, then the balance is
	// drained by a market trade before the trigger fires.
	if _, err := e.PlaceOrder("u1", domain.KindLimitBuy, d("50000"), d("90000")); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := e.MarketBuy(ctx, "u1", d("95000")); err != nil {
		t.Fatalf("drain: %v", err)
	}

	oracle.price = d("50000")
	executed, err := e.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(executed) != 0 {
		t.Fatalf("executed = %v, want none", executed)
	}
	// Triggered but unfillable orders are consumed, not retried.
	if e.book.Len() != 0 {
		t.Error("skipped order left in book")
	}
}

func TestScanFillsInCreationOrder(t *testing.T) {
	e, oracle, _ := newTestEngine(t, "60000")
	ctx := context.Background()
	e.Register("u1", "alice")

	// Both orders fit the balance at placement, but after a 10k market buy
	// only the older one can fill.
	o1, err := e.PlaceOrder("u1", domain.KindLimitBuy, d("50000"), d("60000"))
	if err != nil {
		t.Fatalf("place o1: %v", err)
	}
	o2, err := e.PlaceOrder("u1", domain.KindLimitBuy, d("50000"), d("40000"))
	if err != nil {
		t.Fatalf("place o2: %v", err)
	}
	if _, err := e.MarketBuy(ctx, "u1", d("10000")); err != nil {
		t.Fatalf("drain: %v", err)
	}

	oracle.price = d("50000")
	executed, err := e.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(executed) != 1 || executed[0] != o1.ID {
		t.Fatalf("executed = %v, want only %s (older first)", executed, o1.ID)
	}
	if _, found := e.book.Get(o2.ID); found {
		t.Error("starved order left in book")
	}
}

func TestScanQuoteFailureSkipsCycle(t *testing.T) {
	e, oracle, _ := newTestEngine(t, "50000")
	e.Register("u1", "alice")
	e.PlaceOrder("u1", domain.KindLimitBuy, d("60000"), d("1000"))

	oracle.err = domain.ErrPriceUnavailable
	_, err := e.Scan(context.Background())
	if !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
	if e.book.Len() != 1 {
		t.Error("order consumed during a skipped cycle")
	}
}

func TestScanPersistsOncePerCycle(t *testing.T) {
	e, oracle, store := newTestEngine(t, "60000")
	ctx := context.Background()
	e.Register("u1", "alice")
	e.PlaceOrder("u1", domain.KindLimitBuy, d("50000"), d("1000"))
	e.PlaceOrder("u1", domain.KindLimitBuy, d("50000"), d("1000"))
	e.PlaceOrder("u1", domain.KindLimitBuy, d("50000"), d("1000"))

	before := store.saves
	oracle.price = d("50000")
	if _, err := e.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := store.saves - before; got != 1 {
		t.Errorf("saves during cycle = %d, want 1", got)
	}

	// Nothing triggered, nothing saved.
	before = store.saves
	if _, err := e.Scan(ctx); err != nil {
		t.Fatalf("idle scan: %v", err)
	}
	if got := store.saves - before; got != 0 {
		t.Errorf("saves during idle cycle = %d, want 0", got)
	}
}
