package shared

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Fetcher backends
const (
	FetcherBackendHTTP    = "http"
	FetcherBackendColly   = "colly"
	FetcherBackendBrowser = "browser"
)

// Collector modes
const (
	CollectorModeSequential = "sequential"
	CollectorModeParallel   = "parallel"
)

// Store backends
const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

// DefaultStockSymbols is the equity list synced when none is configured
var DefaultStockSymbols = []string{
	"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK",
	"HINDUNILVR", "ITC", "SBIN", "BHARTIARTL", "KOTAKBANK",
}

// UnifiedConfiguration holds all configuration parameters for the entire application
type UnifiedConfiguration struct {
	Fetcher   FetcherConfig   `json:"fetcher"`
	Collector CollectorConfig `json:"collector"`
	Sync      SyncConfig      `json:"sync"`
	Store     StoreConfig     `json:"store"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Cache     CacheConfig     `json:"cache"`
	Logging   LoggingConfig   `json:"logging"`
}

// FetcherConfig holds upstream page retrieval configuration
type FetcherConfig struct {
	Backend            string        `json:"backend"`
	QuoteURLTemplate   string        `json:"quote_url_template"`
	IndexURLTemplate   string        `json:"index_url_template"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	MaxBodyBytes       int64         `json:"max_body_bytes"`
}

// CollectorConfig holds batch collection configuration
type CollectorConfig struct {
	Mode             string        `json:"mode"`
	RequestRateLimit time.Duration `json:"rate_limit"`
	MaxConcurrency   int           `json:"max_concurrency"`
	MaxRetryAttempts int           `json:"max_retries"`
	OmitFailures     bool          `json:"omit_failures"`
}

// SyncConfig holds scheduler configuration
type SyncConfig struct {
	Interval     time.Duration `json:"interval"`
	RunTimeout   time.Duration `json:"run_timeout"`
	StockSymbols []string      `json:"stock_symbols"`
	RunOnStart   bool          `json:"run_on_start"`
	Enabled      bool          `json:"enabled"`
}

// StoreConfig selects the quote store implementation
type StoreConfig struct {
	Backend string `json:"backend"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// RedisConfig holds the redis quote store connection configuration
type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"-"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// CacheConfig holds on-demand read cache configuration
type CacheConfig struct {
	DefaultTTL time.Duration `json:"default_ttl"`
	MaxSize    int           `json:"max_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Fetcher: FetcherConfig{
			Backend:            FetcherBackendHTTP,
			QuoteURLTemplate:   "https://www.google.com/finance/quote/%s:NSE",
			IndexURLTemplate:   "https://www.google.com/finance/quote/%s",
			HTTPRequestTimeout: 10 * time.Second,
			MaxBodyBytes:       5 << 20,
		},
		Collector: CollectorConfig{
			Mode:             CollectorModeSequential,
			RequestRateLimit: 500 * time.Millisecond,
			MaxConcurrency:   4,
			MaxRetryAttempts: 0,
		},
		Sync: SyncConfig{
			Interval:     60 * time.Second,
			RunTimeout:   5 * time.Minute,
			StockSymbols: append([]string(nil), DefaultStockSymbols...),
			RunOnStart:   true,
			Enabled:      true,
		},
		Store: StoreConfig{
			Backend: StoreBackendMemory,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "quotes:",
		},
		Cache: CacheConfig{
			DefaultTTL: 30 * time.Second,
			MaxSize:    500,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "market-quotes",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	switch c.Fetcher.Backend {
	case FetcherBackendHTTP, FetcherBackendColly, FetcherBackendBrowser:
	default:
		logger.WithField("backend", c.Fetcher.Backend).Warn("Unknown fetcher backend, using http")
		c.Fetcher.Backend = defaults.Fetcher.Backend
	}

	if !strings.Contains(c.Fetcher.QuoteURLTemplate, "%s") {
		c.Fetcher.QuoteURLTemplate = defaults.Fetcher.QuoteURLTemplate
		logger.Debug("Applied default Fetcher.QuoteURLTemplate")
	}

	if !strings.Contains(c.Fetcher.IndexURLTemplate, "%s") {
		c.Fetcher.IndexURLTemplate = defaults.Fetcher.IndexURLTemplate
		logger.Debug("Applied default Fetcher.IndexURLTemplate")
	}

	if c.Fetcher.HTTPRequestTimeout <= 0 {
		c.Fetcher.HTTPRequestTimeout = defaults.Fetcher.HTTPRequestTimeout
		logger.Debug("Applied default Fetcher.HTTPRequestTimeout")
	}

	if c.Fetcher.MaxBodyBytes <= 0 {
		c.Fetcher.MaxBodyBytes = defaults.Fetcher.MaxBodyBytes
		logger.Debug("Applied default Fetcher.MaxBodyBytes")
	}

	switch c.Collector.Mode {
	case CollectorModeSequential, CollectorModeParallel:
	default:
		logger.WithField("mode", c.Collector.Mode).Warn("Unknown collector mode, using sequential")
		c.Collector.Mode = defaults.Collector.Mode
	}

	if c.Collector.RequestRateLimit < 0 {
		c.Collector.RequestRateLimit = defaults.Collector.RequestRateLimit
		logger.Debug("Applied default Collector.RequestRateLimit")
	}

	if c.Collector.MaxConcurrency <= 0 {
		c.Collector.MaxConcurrency = defaults.Collector.MaxConcurrency
		logger.Debug("Applied default Collector.MaxConcurrency")
	}

	if c.Collector.MaxRetryAttempts < 0 {
		c.Collector.MaxRetryAttempts = 0
	}

	if c.Sync.Interval <= 0 {
		c.Sync.Interval = defaults.Sync.Interval
		logger.Debug("Applied default Sync.Interval")
	}

	if c.Sync.RunTimeout <= 0 {
		c.Sync.RunTimeout = defaults.Sync.RunTimeout
		logger.Debug("Applied default Sync.RunTimeout")
	}

	if len(c.Sync.StockSymbols) == 0 {
		c.Sync.StockSymbols = defaults.Sync.StockSymbols
		logger.Debug("Applied default Sync.StockSymbols")
	}

	switch c.Store.Backend {
	case StoreBackendPostgres, StoreBackendRedis, StoreBackendMemory:
	default:
		logger.WithField("backend", c.Store.Backend).Warn("Unknown store backend, using memory")
		c.Store.Backend = StoreBackendMemory
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
	}

	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = defaults.Redis.KeyPrefix
	}

	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = defaults.Cache.DefaultTTL
		logger.Debug("Applied default Cache.DefaultTTL")
	}

	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = defaults.Cache.MaxSize
		logger.Debug("Applied default Cache.MaxSize")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}

	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
