package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcarena/internal/domain"
	"btcarena/internal/event"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalAppendAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now()

	events := []event.Event{
		event.AccountRegisteredEvent{
			BaseEvent: event.BaseEvent{AccountID: "u1", Ts: now},
			Nickname:  "alice",
			Number:    1,
		},
		event.TradeExecutedEvent{
			BaseEvent: event.BaseEvent{AccountID: "u1", Ts: now.Add(time.Second)},
			Trade: domain.Trade{
				Side:  domain.SideBuy,
				BTC:   decimal.RequireFromString("0.01998"),
				USD:   decimal.NewFromInt(1000),
				Price: decimal.NewFromInt(50000),
			},
		},
		event.WinnerDeclaredEvent{
			BaseEvent: event.BaseEvent{AccountID: "u1", Ts: now.Add(2 * time.Second)},
			Nickname:  "alice",
			PnL:       decimal.NewFromInt(5000),
		},
	}
	for _, ev := range events {
		require.NoError(t, j.Append(ctx, ev))
	}

	got, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, event.EvWinnerDeclared, got[0].Type)
	assert.Equal(t, event.EvTradeExecuted, got[1].Type)
	assert.Equal(t, "u1", got[0].AccountID)
	assert.Contains(t, string(got[0].Payload), `"nickname":"alice"`)
	assert.WithinDuration(t, now.Add(2*time.Second), got[0].Ts, time.Millisecond)
}

func TestJournalRecentEmpty(t *testing.T) {
	j := newTestJournal(t)

	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJournalMetadata(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	v, err := j.GetMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, j.UpsertMetadata(ctx, "schema_version", "1"))
	require.NoError(t, j.UpsertMetadata(ctx, "schema_version", "2"))

	v, err = j.GetMetadata(ctx, "schema_version")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestJournalNotifierSwallowsFailures(t *testing.T) {
	j := newTestJournal(t)
	n := j.Notifier()

	n.Notify(event.OrderCancelledEvent{
		BaseEvent: event.BaseEvent{AccountID: "u1", Ts: time.Now()},
		OrderID:   "o1",
	})

	got, err := j.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, event.EvOrderCancelled, got[0].Type)

	// A closed journal must not panic or surface the error.
	require.NoError(t, j.Close())
	assert.NotPanics(t, func() {
		n.Notify(event.OrderCancelledEvent{
			BaseEvent: event.BaseEvent{AccountID: "u1", Ts: time.Now()},
			OrderID:   "o2",
		})
	})
}
