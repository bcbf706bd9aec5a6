package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/shopspring/decimal"

	"btcarena/internal/engine"
	"btcarena/internal/event"
	"btcarena/internal/infra"
	"btcarena/internal/storage"
)

// Bootstrap orchestrates the startup sequence: config, logger, data
// directories, instance lock, stores, engine.
type Bootstrap struct {
	Config  *infra.Config
	Store   *storage.FileStore
	Journal *storage.Journal
	Engine  *engine.Engine
	Oracle  *infra.PriceOracle

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization.
func (b *Bootstrap) Initialize() error {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	infra.SetupLogger(cfg.Logging.Level)
	slog.Info("bootstrapping",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version))

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data")
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// One process per data directory: concurrent writers would tear the
	// snapshot and corrupt the journal.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	b.Store = storage.NewFileStore(filepath.Join(dataDir, "state.json"))

	journal, err := storage.NewJournal(filepath.Join(dataDir, "journal.db"))
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	b.Journal = journal
	slog.Info("journal ready (WAL mode)", slog.String("dir", dataDir))

	b.Oracle = infra.NewPriceOracle(cfg.Oracle.RestURL, cfg.Oracle.Symbol, cfg.QuoteTTL())

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	notifier := event.FanOut{event.LogNotifier{}, journal.Notifier()}
	eng, err := engine.New(engCfg, b.Store, b.Oracle, notifier)
	if err != nil {
		return err
	}
	b.Engine = eng
	return nil
}

// Close releases the instance lock and the journal.
func (b *Bootstrap) Close() {
	if b.Journal != nil {
		b.Journal.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
}

// engineConfig converts validated config strings to engine parameters.
func engineConfig(cfg *infra.Config) (engine.Config, error) {
	out := engine.DefaultConfig()
	for _, f := range []struct {
		src string
		dst *decimal.Decimal
	}{
		{cfg.Contest.StartingCapitalUSD, &out.StartingCapital},
		{cfg.Contest.FeeRate, &out.FeeRate},
		{cfg.Contest.MinTradeUSD, &out.MinTradeUSD},
		{cfg.Contest.PrizeThresholdUSD, &out.PrizeThreshold},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return engine.Config{}, fmt.Errorf("bad contest parameter %q: %w", f.src, err)
		}
		*f.dst = d
	}
	out.LeaderboardSize = cfg.Contest.LeaderboardSize
	out.HistorySize = cfg.Contest.HistorySize
	return out, nil
}
