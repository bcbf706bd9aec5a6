package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Contest.StartingCapitalUSD != "100000" {
		t.Errorf("starting capital = %s, want 100000", cfg.Contest.StartingCapitalUSD)
	}
	if cfg.Contest.ScanIntervalSec != 30 {
		t.Errorf("scan interval = %d, want 30", cfg.Contest.ScanIntervalSec)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
contest:
  starting_capital_usd: "250000"
  fee_rate: "0.002"
  min_trade_usd: "5"
  prize_threshold_usd: "10000"
  leaderboard_size: 10
  history_size: 5
  scan_interval_sec: 15
http:
  listen_addr: ":9999"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Contest.StartingCapitalUSD != "250000" {
		t.Errorf("starting capital = %s", cfg.Contest.StartingCapitalUSD)
	}
	if cfg.HTTP.ListenAddr != ":9999" {
		t.Errorf("listen addr = %s", cfg.HTTP.ListenAddr)
	}
	// Unset keys keep their defaults.
	if cfg.Oracle.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s, want default BTCUSDT", cfg.Oracle.Symbol)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ARENA_LISTEN_ADDR", ":7777")
	t.Setenv("ARENA_FEE_RATE", "0.005")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.ListenAddr != ":7777" {
		t.Errorf("listen addr = %s, want :7777 from env", cfg.HTTP.ListenAddr)
	}
	if cfg.Contest.FeeRate != "0.005" {
		t.Errorf("fee rate = %s, want 0.005 from env", cfg.Contest.FeeRate)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad capital", func(c *Config) { c.Contest.StartingCapitalUSD = "lots" }},
		{"negative fee", func(c *Config) { c.Contest.FeeRate = "-0.1" }},
		{"fee not a fraction", func(c *Config) { c.Contest.FeeRate = "1.5" }},
		{"zero scan interval", func(c *Config) { c.Contest.ScanIntervalSec = 0 }},
		{"bad rest url", func(c *Config) { c.Oracle.RestURL = "ftp://nope" }},
		{"bad ws url", func(c *Config) { c.Oracle.WSURL = "http://nope" }},
		{"empty symbol", func(c *Config) { c.Oracle.Symbol = "" }},
		{"empty listen addr", func(c *Config) { c.HTTP.ListenAddr = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
