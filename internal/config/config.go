// Package config loads settings from .env, optional TOML files and the
// process environment, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Price sources.
const (
	SourceAlpaca = "alpaca"
	SourceStatic = "static"
)

// Config is the effective configuration after files and environment are applied.
type Config struct {
	DataDir string        `toml:"data_dir"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Storage StorageConfig `toml:"storage"`
	Market  MarketConfig  `toml:"market"`
	Logging LoggingConfig `toml:"logging"`
	Watcher WatcherConfig `toml:"watcher"`

	// Warnings collects problems that did not stop loading, such as a
	// missing .env file or an unparsable override. Callers log them once
	// the logger exists.
	Warnings []string `toml:"-"`
}

// LedgerConfig holds the trading rules applied to every account.
type LedgerConfig struct {
	InitialBalance float64 `toml:"initial_balance"`
	Spread         float64 `toml:"spread"`
}

func (c LedgerConfig) InitialBalanceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.InitialBalance)
}

func (c LedgerConfig) SpreadDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Spread)
}

// StorageConfig selects and locates the account store.
type StorageConfig struct {
	Backend     string `toml:"backend"`
	FileDir     string `toml:"file_dir"`
	BadgerDir   string `toml:"badger_dir"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// MarketConfig selects the price source and its caching.
type MarketConfig struct {
	Source        string       `toml:"source"`
	StaticPrices  string       `toml:"static_prices"` // "AAPL=190.5,MSFT=410"
	CacheTTL      string       `toml:"cache_ttl"`
	RateLimit     int          `toml:"rate_limit"` // requests per second, 0 disables
	Timeout       string       `toml:"timeout"`
	Stream        bool         `toml:"stream"`
	StreamSymbols []string     `toml:"stream_symbols"`
	StreamMaxAge  string       `toml:"stream_max_age"`
	Alpaca        AlpacaConfig `toml:"alpaca"`
}

// AlpacaConfig carries market data credentials.
type AlpacaConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	DataURL   string `toml:"data_url"`
	Feed      string `toml:"feed"`
}

// GetCacheTTL parses CacheTTL, defaulting to 15s.
func (c MarketConfig) GetCacheTTL() time.Duration { return parseDuration(c.CacheTTL, 15*time.Second) }

// GetTimeout parses Timeout, defaulting to 10s.
func (c MarketConfig) GetTimeout() time.Duration { return parseDuration(c.Timeout, 10*time.Second) }

// GetStreamMaxAge parses StreamMaxAge, defaulting to 1m.
func (c MarketConfig) GetStreamMaxAge() time.Duration {
	return parseDuration(c.StreamMaxAge, time.Minute)
}

// LoggingConfig controls the diagnostic and audit log files.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	AuditFile  string `toml:"audit_file"`
	MaxSizeMB  int64  `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// WatcherConfig drives the periodic valuation loop.
type WatcherConfig struct {
	PollIntervalMins int      `toml:"poll_interval_mins"`
	Accounts         []string `toml:"accounts"` // empty means every stored account
}

// Interval is the poll period as a duration.
func (c WatcherConfig) Interval() time.Duration {
	return time.Duration(c.PollIntervalMins) * time.Minute
}

// NewDefaultConfig returns the settings used when nothing overrides them.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Ledger: LedgerConfig{
			InitialBalance: 10000,
			Spread:         0.002,
		},
		Storage: StorageConfig{Backend: BackendFile},
		Market: MarketConfig{
			Source:       SourceAlpaca,
			CacheTTL:     "15s",
			RateLimit:    3,
			Timeout:      "10s",
			StreamMaxAge: "1m",
			Alpaca:       AlpacaConfig{Feed: "iex"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
		Watcher: WatcherConfig{PollIntervalMins: 60},
	}
}

// Load reads .env into the process environment, merges the TOML files in
// order (missing files are skipped), applies environment overrides and
// validates the result.
func Load(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	if err := godotenv.Load(); err != nil {
		cfg.Warnings = append(cfg.Warnings, "no .env file found, using system environment variables")
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	env := &envReader{}

	cfg.DataDir = env.getString("LEDGER_DATA_DIR", cfg.DataDir)
	cfg.Storage.Backend = strings.ToLower(env.getString("LEDGER_STORE", cfg.Storage.Backend))
	cfg.Storage.PostgresDSN = env.getString("LEDGER_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Ledger.InitialBalance = env.getFloat64("LEDGER_INITIAL_BALANCE", cfg.Ledger.InitialBalance)
	cfg.Ledger.Spread = env.getFloat64("LEDGER_SPREAD", cfg.Ledger.Spread)

	cfg.Market.Source = strings.ToLower(env.getString("LEDGER_PRICE_SOURCE", cfg.Market.Source))
	cfg.Market.StaticPrices = env.getString("LEDGER_STATIC_PRICES", cfg.Market.StaticPrices)
	cfg.Market.CacheTTL = env.getString("LEDGER_PRICE_CACHE_TTL", cfg.Market.CacheTTL)
	cfg.Market.RateLimit = env.getInt("LEDGER_PRICE_RATE_LIMIT", cfg.Market.RateLimit)
	cfg.Market.Stream = env.getBool("LEDGER_PRICE_STREAM", cfg.Market.Stream)
	cfg.Market.StreamSymbols = env.getList("LEDGER_PRICE_STREAM_SYMBOLS", cfg.Market.StreamSymbols)
	cfg.Market.Alpaca.APIKey = env.getString("APCA_API_KEY_ID", cfg.Market.Alpaca.APIKey)
	cfg.Market.Alpaca.APISecret = env.getString("APCA_API_SECRET_KEY", cfg.Market.Alpaca.APISecret)
	cfg.Market.Alpaca.DataURL = env.getString("APCA_API_DATA_URL", cfg.Market.Alpaca.DataURL)
	cfg.Market.Alpaca.Feed = env.getString("APCA_FEED", cfg.Market.Alpaca.Feed)

	cfg.Logging.Level = env.getString("LEDGER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = env.getString("LEDGER_LOG_FILE", cfg.Logging.File)
	cfg.Logging.AuditFile = env.getString("LEDGER_AUDIT_FILE", cfg.Logging.AuditFile)

	cfg.Watcher.PollIntervalMins = env.getInt("WATCHER_POLL_INTERVAL", cfg.Watcher.PollIntervalMins)
	cfg.Watcher.Accounts = env.getList("WATCHER_ACCOUNTS", cfg.Watcher.Accounts)

	cfg.Warnings = append(cfg.Warnings, env.warnings...)
}

// resolvePaths fills unset locations from DataDir.
func (c *Config) resolvePaths() {
	if c.Storage.FileDir == "" {
		c.Storage.FileDir = filepath.Join(c.DataDir, "accounts")
	}
	if c.Storage.BadgerDir == "" {
		c.Storage.BadgerDir = filepath.Join(c.DataDir, "badger")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "logs", "ledger.log")
	}
	if c.Logging.AuditFile == "" {
		c.Logging.AuditFile = filepath.Join(c.DataDir, "logs", "audit.log")
	}
}

// Validate checks backend names, numeric ranges and the credentials the
// selected backends need.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendBadger, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Market.Source {
	case SourceAlpaca, SourceStatic:
	default:
		return fmt.Errorf("unknown price source %q", c.Market.Source)
	}
	if c.Ledger.InitialBalance < 0 {
		return fmt.Errorf("initial balance must not be negative, got %v", c.Ledger.InitialBalance)
	}
	if c.Ledger.Spread < 0 || c.Ledger.Spread >= 1 {
		return fmt.Errorf("spread must be in [0, 1), got %v", c.Ledger.Spread)
	}
	if c.Watcher.PollIntervalMins <= 0 {
		return fmt.Errorf("watcher poll interval must be positive, got %d", c.Watcher.PollIntervalMins)
	}

	if missing := c.MissingRequired(); len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

// MissingRequired lists the required variables that are unset for the
// selected backends.
func (c *Config) MissingRequired() []string {
	var missing []string
	if c.Market.Source == SourceAlpaca {
		if c.Market.Alpaca.APIKey == "" {
			missing = append(missing, "APCA_API_KEY_ID")
		}
		if c.Market.Alpaca.APISecret == "" {
			missing = append(missing, "APCA_API_SECRET_KEY")
		}
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.PostgresDSN == "" {
		missing = append(missing, "LEDGER_POSTGRES_DSN")
	}
	return missing
}

// Redacted lists the effective settings as sorted key=value lines with
// secrets masked.
func (c *Config) Redacted() []string {
	settings := map[string]string{
		"LEDGER_DATA_DIR":         c.DataDir,
		"LEDGER_STORE":            c.Storage.Backend,
		"LEDGER_POSTGRES_DSN":     mask(c.Storage.PostgresDSN),
		"LEDGER_INITIAL_BALANCE":  c.Ledger.InitialBalanceDecimal().String(),
		"LEDGER_SPREAD":           c.Ledger.SpreadDecimal().String(),
		"LEDGER_PRICE_SOURCE":     c.Market.Source,
		"LEDGER_PRICE_CACHE_TTL":  c.Market.CacheTTL,
		"LEDGER_PRICE_RATE_LIMIT": fmt.Sprint(c.Market.RateLimit),
		"LEDGER_PRICE_STREAM":     fmt.Sprint(c.Market.Stream),
		"LEDGER_STATIC_PRICES":    c.Market.StaticPrices,
		"APCA_API_KEY_ID":         mask(c.Market.Alpaca.APIKey),
		"APCA_API_SECRET_KEY":     mask(c.Market.Alpaca.APISecret),
		"APCA_API_DATA_URL":       c.Market.Alpaca.DataURL,
		"APCA_FEED":               c.Market.Alpaca.Feed,
		"LEDGER_LOG_LEVEL":        c.Logging.Level,
		"LEDGER_LOG_FILE":         c.Logging.File,
		"LEDGER_AUDIT_FILE":       c.Logging.AuditFile,
		"WATCHER_POLL_INTERVAL":   fmt.Sprint(c.Watcher.PollIntervalMins),
		"WATCHER_ACCOUNTS":        strings.Join(c.Watcher.Accounts, ","),
	}
	out := make([]string, 0, len(settings))
	for k, v := range settings {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// mask shows only the last 4 characters of a secret.
func mask(val string) string {
	if val == "" {
		return ""
	}
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
