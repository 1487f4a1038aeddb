package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort       string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          string
	StoreBackend     string
	FetcherBackend   string
	QuoteURLTemplate string
	IndexURLTemplate string
	FetchTimeout     string
	FetchRetries     string
	CollectorMode    string
	CollectorDelay   string
	MaxConcurrency   string
	OmitFailures     string
	StockSymbols     string
	SyncInterval     string
	SyncRunTimeout   string
	SyncEnabled      string
	CacheTTLSeconds  string
	LogLevel         string
	LogFormat        string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnv("REDIS_DB", "0"),
		StoreBackend:     getEnv("STORE_BACKEND", ""),
		FetcherBackend:   getEnv("FETCHER_BACKEND", shared.FetcherBackendHTTP),
		QuoteURLTemplate: getEnv("QUOTE_URL_TEMPLATE", ""),
		IndexURLTemplate: getEnv("INDEX_URL_TEMPLATE", ""),
		FetchTimeout:     getEnv("FETCH_TIMEOUT", "10s"),
		FetchRetries:     getEnv("FETCH_RETRIES", "0"),
		CollectorMode:    getEnv("COLLECTOR_MODE", shared.CollectorModeSequential),
		CollectorDelay:   getEnv("COLLECTOR_DELAY", "500ms"),
		MaxConcurrency:   getEnv("COLLECTOR_MAX_CONCURRENCY", "4"),
		OmitFailures:     getEnv("COLLECTOR_OMIT_FAILURES", "false"),
		StockSymbols:     getEnv("STOCK_SYMBOLS", ""),
		SyncInterval:     getEnv("SYNC_INTERVAL", "60s"),
		SyncRunTimeout:   getEnv("SYNC_RUN_TIMEOUT", "5m"),
		SyncEnabled:      getEnv("SYNC_ENABLED", "true"),
		CacheTTLSeconds:  getEnv("CACHE_TTL_SECONDS", "30"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}
}

// GetStoreBackend resolves the quote store backend, defaulting to postgres when a database URL is set
func (c *Config) GetStoreBackend() string {
	if c.StoreBackend != "" {
		return strings.ToLower(c.StoreBackend)
	}
	if c.DatabaseURL != "" {
		return shared.StoreBackendPostgres
	}
	if c.RedisAddr != "" {
		return shared.StoreBackendRedis
	}
	return shared.StoreBackendMemory
}

// GetStockSymbols returns the configured equity symbols, or the defaults when unset
func (c *Config) GetStockSymbols() []string {
	if strings.TrimSpace(c.StockSymbols) == "" {
		return append([]string(nil), shared.DefaultStockSymbols...)
	}

	var symbols []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(c.StockSymbols, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	return symbols
}

// GetCacheTTL returns the on-demand read cache TTL
func (c *Config) GetCacheTTL() time.Duration {
	seconds, err := strconv.Atoi(c.CacheTTLSeconds)
	if err != nil || seconds <= 0 {
		logrus.Warnf("Invalid CACHE_TTL_SECONDS value: %s, using default 30 seconds", c.CacheTTLSeconds)
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// ToUnified converts environment settings into the typed application configuration
func (c *Config) ToUnified() *shared.UnifiedConfiguration {
	unified := shared.NewDefaultUnifiedConfiguration()

	unified.Fetcher.Backend = strings.ToLower(c.FetcherBackend)
	if c.QuoteURLTemplate != "" {
		unified.Fetcher.QuoteURLTemplate = c.QuoteURLTemplate
	}
	if c.IndexURLTemplate != "" {
		unified.Fetcher.IndexURLTemplate = c.IndexURLTemplate
	}
	unified.Fetcher.HTTPRequestTimeout = parseDuration("FETCH_TIMEOUT", c.FetchTimeout, unified.Fetcher.HTTPRequestTimeout)

	unified.Collector.Mode = strings.ToLower(c.CollectorMode)
	unified.Collector.RequestRateLimit = parseDuration("COLLECTOR_DELAY", c.CollectorDelay, unified.Collector.RequestRateLimit)
	unified.Collector.MaxConcurrency = parseInt("COLLECTOR_MAX_CONCURRENCY", c.MaxConcurrency, unified.Collector.MaxConcurrency)
	unified.Collector.MaxRetryAttempts = parseInt("FETCH_RETRIES", c.FetchRetries, unified.Collector.MaxRetryAttempts)
	unified.Collector.OmitFailures = parseBool("COLLECTOR_OMIT_FAILURES", c.OmitFailures, false)

	unified.Sync.Interval = parseDuration("SYNC_INTERVAL", c.SyncInterval, unified.Sync.Interval)
	unified.Sync.RunTimeout = parseDuration("SYNC_RUN_TIMEOUT", c.SyncRunTimeout, unified.Sync.RunTimeout)
	unified.Sync.StockSymbols = c.GetStockSymbols()
	unified.Sync.Enabled = parseBool("SYNC_ENABLED", c.SyncEnabled, true)

	unified.Store.Backend = c.GetStoreBackend()
	if c.RedisAddr != "" {
		unified.Redis.Addr = c.RedisAddr
	}
	unified.Redis.Password = c.RedisPassword
	unified.Redis.DB = parseInt("REDIS_DB", c.RedisDB, 0)

	unified.Cache.DefaultTTL = c.GetCacheTTL()
	unified.Logging.Level = c.LogLevel
	unified.Logging.Format = c.LogFormat

	unified.ValidateAndApplyDefaults()
	return unified
}

// ConfigureLogging applies level and formatter settings to the standard logrus logger
func ConfigureLogging(cfg shared.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(key, value string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %v", key, value, fallback)
		return fallback
	}
	return parsed
}

func parseInt(key, value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func parseBool(key, value string, fallback bool) bool {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %t", key, value, fallback)
		return fallback
	}
	return parsed
}
