package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestConditionalOrder_ShouldTrigger(t *testing.T) {
	trigger := decimal.NewFromInt(100)

	tests := []struct {
		kind  OrderKind
		price int64
		want  bool
	}{
		{KindLimitBuy, 90, true},
		{KindLimitBuy, 100, true},
		{KindLimitBuy, 110, false},
		{KindLimitSell, 110, true},
		{KindLimitSell, 100, true},
		{KindLimitSell, 90, false},
		{KindStopBuy, 110, true},
		{KindStopBuy, 90, false},
		{KindStopSell, 90, true},
		{KindStopSell, 110, false},
		{OrderKind("BOGUS"), 90, false},
	}

	for _, tt := range tests {
		o := &ConditionalOrder{Kind: tt.kind, TriggerPrice: trigger}
		got := o.ShouldTrigger(decimal.NewFromInt(tt.price))
		if got != tt.want {
			t.Errorf("%s at price %d: got %v, want %v", tt.kind, tt.price, got, tt.want)
		}
	}
}

func TestOrderKind_Classification(t *testing.T) {
	if !KindLimitBuy.IsBuy() || !KindStopBuy.IsBuy() {
		t.Error("buy kinds misclassified")
	}
	if !KindLimitSell.IsSell() || !KindStopSell.IsSell() {
		t.Error("sell kinds misclassified")
	}
	if KindLimitBuy.IsSell() || KindStopSell.IsBuy() {
		t.Error("cross classification")
	}
	if OrderKind("MARKET").Valid() {
		t.Error("unknown kind reported valid")
	}
}

func TestAccount_WealthAndPnL(t *testing.T) {
	a := &Account{
		USD:             decimal.NewFromInt(99000),
		BTC:             decimal.RequireFromString("0.01998"),
		StartingCapital: decimal.NewFromInt(100000),
	}
	price := decimal.NewFromInt(50000)

	wealth := a.TotalWealth(price)
	if !wealth.Equal(decimal.RequireFromString("99999")) {
		t.Errorf("wealth = %s, want 99999", wealth)
	}

	pnl := a.PnL(price)
	if !pnl.Equal(decimal.NewFromInt(-1)) {
		t.Errorf("pnl = %s, want -1", pnl)
	}
}
