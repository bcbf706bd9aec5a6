package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Values load from config.yaml and can
// be overridden by ARENA_* environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Contest struct {
		StartingCapitalUSD string `yaml:"starting_capital_usd"`
		FeeRate            string `yaml:"fee_rate"` // fraction, 0.001 = 0.1%
		MinTradeUSD        string `yaml:"min_trade_usd"`
		PrizeThresholdUSD  string `yaml:"prize_threshold_usd"`
		LeaderboardSize    int    `yaml:"leaderboard_size"`
		HistorySize        int    `yaml:"history_size"`
		ScanIntervalSec    int    `yaml:"scan_interval_sec"`
		ScanFirstDelaySec  int    `yaml:"scan_first_delay_sec"`
	} `yaml:"contest"`

	Oracle struct {
		RestURL     string `yaml:"rest_url"`
		WSURL       string `yaml:"ws_url"`
		Symbol      string `yaml:"symbol"`
		QuoteTTLSec int    `yaml:"quote_ttl_sec"`
	} `yaml:"oracle"`

	HTTP struct {
		ListenAddr     string `yaml:"listen_addr"`
		CooldownMillis int    `yaml:"cooldown_millis"` // per-caller command cooldown
	} `yaml:"http"`

	News struct {
		Feeds    []string `yaml:"feeds"`
		MaxItems int      `yaml:"max_items"`
	} `yaml:"news"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns the configuration used when no file is present:
// the live contest parameters against Binance public endpoints.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "btc-arena"
	cfg.App.Version = "dev"
	cfg.Contest.StartingCapitalUSD = "100000"
	cfg.Contest.FeeRate = "0.001"
	cfg.Contest.MinTradeUSD = "1"
	cfg.Contest.PrizeThresholdUSD = "3000"
	cfg.Contest.LeaderboardSize = 50
	cfg.Contest.HistorySize = 15
	cfg.Contest.ScanIntervalSec = 30
	cfg.Contest.ScanFirstDelaySec = 10
	cfg.Oracle.RestURL = "https://api.binance.com"
	cfg.Oracle.WSURL = "wss://stream.binance.com:9443/ws"
	cfg.Oracle.Symbol = "BTCUSDT"
	cfg.Oracle.QuoteTTLSec = 30
	cfg.HTTP.ListenAddr = ":8080"
	cfg.HTTP.CooldownMillis = 1000
	cfg.News.MaxItems = 20
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads and parses the config file, applies environment
// overrides, and validates the result. A missing file falls back to
// DefaultConfig (still env-overridable).
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	for name, val := range map[string]string{
		"starting_capital_usd": c.Contest.StartingCapitalUSD,
		"fee_rate":             c.Contest.FeeRate,
		"min_trade_usd":        c.Contest.MinTradeUSD,
		"prize_threshold_usd":  c.Contest.PrizeThresholdUSD,
	} {
		d, err := decimal.NewFromString(val)
		if err != nil {
			return fmt.Errorf("%s: not a number: %q", name, val)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	fee, _ := decimal.NewFromString(c.Contest.FeeRate)
	if fee.GreaterThanOrEqual(decimal.New(1, 0)) {
		return fmt.Errorf("fee_rate must be a fraction below 1, got %s", c.Contest.FeeRate)
	}

	if c.Contest.ScanIntervalSec <= 0 {
		return fmt.Errorf("scan_interval_sec must be positive")
	}
	if c.Contest.LeaderboardSize <= 0 || c.Contest.HistorySize <= 0 {
		return fmt.Errorf("leaderboard_size and history_size must be positive")
	}

	if !strings.HasPrefix(c.Oracle.RestURL, "http://") && !strings.HasPrefix(c.Oracle.RestURL, "https://") {
		return fmt.Errorf("invalid oracle rest_url: %s", c.Oracle.RestURL)
	}
	if c.Oracle.WSURL != "" && !strings.HasPrefix(c.Oracle.WSURL, "ws://") && !strings.HasPrefix(c.Oracle.WSURL, "wss://") {
		return fmt.Errorf("invalid oracle ws_url: %s", c.Oracle.WSURL)
	}
	if c.Oracle.Symbol == "" {
		return fmt.Errorf("oracle symbol is required")
	}
	if c.Oracle.QuoteTTLSec <= 0 {
		return fmt.Errorf("quote_ttl_sec must be positive")
	}

	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("http listen_addr is required")
	}
	return nil
}

// ScanInterval returns the matcher cycle period.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Contest.ScanIntervalSec) * time.Second
}

// ScanFirstDelay returns the delay before the first matcher cycle.
func (c *Config) ScanFirstDelay() time.Duration {
	return time.Duration(c.Contest.ScanFirstDelaySec) * time.Second
}

// QuoteTTL returns how long a fetched quote stays fresh.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Oracle.QuoteTTLSec) * time.Second
}

// Cooldown returns the per-caller command cooldown.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.HTTP.CooldownMillis) * time.Millisecond
}

// overrideWithEnv applies ARENA_* environment variables on top of the file
// values. Environment wins, so deployments never need to edit the file.
func overrideWithEnv(cfg *Config) {
	set := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	set("ARENA_LISTEN_ADDR", &cfg.HTTP.ListenAddr)
	set("ARENA_ORACLE_REST_URL", &cfg.Oracle.RestURL)
	set("ARENA_ORACLE_WS_URL", &cfg.Oracle.WSURL)
	set("ARENA_ORACLE_SYMBOL", &cfg.Oracle.Symbol)
	set("ARENA_LOG_LEVEL", &cfg.Logging.Level)
	set("ARENA_STARTING_CAPITAL", &cfg.Contest.StartingCapitalUSD)
	set("ARENA_FEE_RATE", &cfg.Contest.FeeRate)
	set("ARENA_PRIZE_THRESHOLD", &cfg.Contest.PrizeThresholdUSD)
}
