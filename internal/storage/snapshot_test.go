package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcarena/internal/domain"
)

func TestFileStoreLoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
	assert.Empty(t, snap.Orders)
	assert.False(t, snap.Winner.Announced)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)

	snap := NewSnapshot()
	snap.Accounts["u1"] = &domain.Account{
		ID:              "u1",
		Nickname:        "alice",
		Number:          1,
		USD:             decimal.RequireFromString("99000"),
		BTC:             decimal.RequireFromString("0.01998"),
		StartingCapital: decimal.NewFromInt(100000),
		Trades: []domain.Trade{{
			Side:   domain.SideBuy,
			BTC:    decimal.RequireFromString("0.01998"),
			USD:    decimal.NewFromInt(1000),
			Price:  decimal.NewFromInt(50000),
			FeePct: decimal.RequireFromString("0.1"),
		}},
	}
	snap.Orders["o1"] = &domain.ConditionalOrder{
		ID:           "o1",
		AccountID:    "u1",
		Kind:         domain.KindLimitBuy,
		TriggerPrice: decimal.NewFromInt(40000),
		QuoteAmount:  decimal.NewFromInt(500),
		BaseAmount:   decimal.RequireFromString("0.0125"),
	}
	snap.Winner = domain.WinnerState{AccountID: "u1", Announced: true, PnL: decimal.NewFromInt(5000)}
	q := domain.Quote{Price: decimal.NewFromInt(50000), ObservedAt: time.Now().Truncate(time.Second)}
	snap.LastQuote = &q

	require.NoError(t, s.Save(snap))

	got, err := s.Load()
	require.NoError(t, err)

	acct := got.Accounts["u1"]
	require.NotNil(t, acct)
	assert.Equal(t, "alice", acct.Nickname)
	assert.True(t, acct.USD.Equal(decimal.RequireFromString("99000")), "USD = %s", acct.USD)
	assert.True(t, acct.BTC.Equal(decimal.RequireFromString("0.01998")), "BTC = %s", acct.BTC)
	require.Len(t, acct.Trades, 1)
	assert.Equal(t, domain.SideBuy, acct.Trades[0].Side)

	o := got.Orders["o1"]
	require.NotNil(t, o)
	assert.Equal(t, domain.KindLimitBuy, o.Kind)
	assert.True(t, o.TriggerPrice.Equal(decimal.NewFromInt(40000)))

	assert.True(t, got.Winner.Announced)
	assert.Equal(t, "u1", got.Winner.AccountID)
	require.NotNil(t, got.LastQuote)
	assert.True(t, got.LastQuote.Price.Equal(decimal.NewFromInt(50000)))
	assert.NotZero(t, got.SavedAtUnix)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)

	snap := NewSnapshot()
	snap.Accounts["u1"] = &domain.Account{ID: "u1", Nickname: "alice", Number: 1}
	require.NoError(t, s.Save(snap))

	snap2 := NewSnapshot()
	snap2.Accounts["u2"] = &domain.Account{ID: "u2", Nickname: "bob", Number: 2}
	require.NoError(t, s.Save(snap2))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got.Accounts, 1)
	assert.Contains(t, got.Accounts, "u2")

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}
