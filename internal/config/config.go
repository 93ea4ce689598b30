package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	Chain    ChainConfig    `yaml:"chain"`
	Feed     FeedConfig     `yaml:"feed"`
	Database DatabaseConfig `yaml:"database"`
	State    StateConfig    `yaml:"state"`
	Maker    MakerConfig    `yaml:"maker"`
	Retry    RetryConfig    `yaml:"retry"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ChainConfig struct {
	RPCURL            string        `yaml:"rpc_url"`
	TradingHubAddress string        `yaml:"trading_hub_address"`
	CollateralAddress string        `yaml:"collateral_address"`
	ChainID           int64         `yaml:"chain_id"`
	TxTimeout         time.Duration `yaml:"tx_timeout"`
}

type FeedConfig struct {
	BaseURL       string        `yaml:"base_url"`
	WSURL         string        `yaml:"ws_url"`
	Timeout       time.Duration `yaml:"timeout"`
	StreamEnabled bool          `yaml:"stream_enabled"`
	StaleAfter    time.Duration `yaml:"stale_after"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type MakerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	SpreadPoints    int           `yaml:"spread_points"`
	MinBalanceUSDC  int64         `yaml:"min_balance_usdc"`
	MintAmountUSDC  int64         `yaml:"mint_amount_usdc"`
	OrderAmountUSDC int64         `yaml:"order_amount_usdc"`
	MaxMarkets      int           `yaml:"max_markets"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
}

type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Schema    string `yaml:"schema"`
	QueueSize int    `yaml:"queue_size"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// Secrets come from the environment, never from the YAML file.
func applyEnvOverrides(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if token := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
}

// PrivateKey returns the maker wallet key from the environment.
func PrivateKey() string {
	return strings.TrimSpace(os.Getenv("MM_PRIVATE_KEY"))
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = "https://evmrpc-testnet.0g.ai"
	}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = 16601
	}
	if cfg.Chain.TxTimeout == 0 {
		cfg.Chain.TxTimeout = 90 * time.Second
	}
	if cfg.Feed.BaseURL == "" {
		cfg.Feed.BaseURL = "https://clob.polymarket.com"
	}
	if cfg.Feed.WSURL == "" {
		cfg.Feed.WSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 10 * time.Second
	}
	if cfg.Feed.StaleAfter == 0 {
		cfg.Feed.StaleAfter = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/og-mm-bot.db"
	}
	if cfg.Maker.Interval == 0 {
		cfg.Maker.Interval = time.Minute
	}
	// SpreadPoints has no default; zero is rejected in validate.
	if cfg.Maker.MinBalanceUSDC == 0 {
		cfg.Maker.MinBalanceUSDC = 100
	}
	if cfg.Maker.MintAmountUSDC == 0 {
		// The faucet token caps a single mint at 10,000 and rate-limits to one per hour.
		cfg.Maker.MintAmountUSDC = 10000
	}
	if cfg.Maker.OrderAmountUSDC == 0 {
		cfg.Maker.OrderAmountUSDC = 10
	}
	if cfg.Maker.MaxMarkets == 0 {
		cfg.Maker.MaxMarkets = 5
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 4
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
}

func validate(cfg *Config) error {
	if !cfg.Maker.Enabled {
		return nil
	}
	if cfg.Chain.TradingHubAddress == "" {
		return errors.New("chain.trading_hub_address is required")
	}
	if cfg.Chain.CollateralAddress == "" {
		return errors.New("chain.collateral_address is required")
	}
	if cfg.Database.DSN == "" {
		return errors.New("database dsn is required (database.dsn or DATABASE_URL)")
	}
	if cfg.Maker.Interval <= 0 {
		return errors.New("maker.interval must be > 0")
	}
	// A zero spread would let the two resting bids sum to 100 and match each other.
	if cfg.Maker.SpreadPoints < 1 || cfg.Maker.SpreadPoints > 49 {
		return fmt.Errorf("maker.spread_points must be in [1,49], got %d", cfg.Maker.SpreadPoints)
	}
	if cfg.Maker.MinBalanceUSDC <= 0 {
		return errors.New("maker.min_balance_usdc must be > 0")
	}
	if cfg.Maker.MintAmountUSDC <= 0 {
		return errors.New("maker.mint_amount_usdc must be > 0")
	}
	if cfg.Maker.OrderAmountUSDC <= 0 {
		return errors.New("maker.order_amount_usdc must be > 0")
	}
	if cfg.Maker.MaxMarkets <= 0 {
		return errors.New("maker.max_markets must be > 0")
	}
	return nil
}
