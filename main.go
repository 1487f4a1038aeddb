package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/market-quotes/config"
	"github.com/fenilmodi00/market-quotes/database"
	"github.com/fenilmodi00/market-quotes/handlers"
	"github.com/fenilmodi00/market-quotes/jobs"
	"github.com/fenilmodi00/market-quotes/services"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()
	unified := cfg.ToUnified()
	config.ConfigureLogging(unified.Logging)
	if configJSON, err := unified.ToJSON(); err == nil {
		logrus.WithField("component", "main").Debug(string(configJSON))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Select the quote store
	var store services.QuoteStore
	var healthCheck func(ctx context.Context) error

	switch unified.Store.Backend {
	case shared.StoreBackendPostgres:
		if err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.MigrateEmbedded(database.DB); err != nil {
			log.Printf("Migration warning: %v", err)
		}
		store = database.NewQuoteRepository(database.DB)
		healthCheck = database.HealthCheck
	case shared.StoreBackendRedis:
		client := services.NewRedisClient(unified.Redis)
		defer client.Close()

		redisStore := services.NewRedisQuoteStore(client, unified.Redis.KeyPrefix)
		if err := redisStore.Ping(ctx); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		store = redisStore
		healthCheck = redisStore.Ping
	default:
		store = services.NewMemoryQuoteStore()
	}

	// Initialize services
	fetchMetrics := shared.NewServiceMetrics("MarketPageFetcher")
	collectorMetrics := shared.NewServiceMetrics("BatchQuoteCollector")
	syncMetrics := shared.NewServiceMetrics("QuoteSyncJob")

	clientFactory := shared.NewHTTPClientFactory(unified.Fetcher.HTTPRequestTimeout)
	defer clientFactory.CleanupAllClients()

	fetcher := services.NewPageFetcher(unified.Fetcher, clientFactory, fetchMetrics)
	extractor := services.NewQuoteExtractor()

	// Scheduled and on-demand reads use separate collectors
	syncCollector := services.NewBatchQuoteCollectorFromConfig(fetcher, extractor, unified.Collector, collectorMetrics)
	onDemandCollector := services.NewBatchQuoteCollectorFromConfig(fetcher, extractor, unified.Collector, collectorMetrics)

	cacheService := services.NewCacheService(unified.Cache.DefaultTTL, unified.Cache.MaxSize)
	marketData := services.NewMarketDataService(onDemandCollector, store, cacheService, unified.Sync.StockSymbols)
	marketTools := services.NewMarketTools(marketData)

	log.Println("Market quote services initialized:")
	log.Printf("  - Fetcher backend: %s (timeout: %v)", unified.Fetcher.Backend, unified.Fetcher.HTTPRequestTimeout)
	log.Printf("  - Collector mode: %s (delay: %v, concurrency: %d, retries: %d)",
		unified.Collector.Mode, unified.Collector.RequestRateLimit, unified.Collector.MaxConcurrency, unified.Collector.MaxRetryAttempts)
	log.Printf("  - Quote store: %s", unified.Store.Backend)
	log.Printf("  - Read cache (TTL: %v, max size: %d)", unified.Cache.DefaultTTL, unified.Cache.MaxSize)

	// Start background jobs
	syncJob := jobs.NewQuoteSyncJob(syncCollector, store, unified.Sync, syncMetrics)
	cleanupJob := jobs.NewCacheCleanupJob(cacheService)

	if unified.Sync.Enabled {
		syncJob.Start(ctx, unified.Sync.Interval)
	} else {
		logrus.Info("Scheduled quote sync disabled; use POST /api/v1/admin/sync")
	}
	cleanupJob.Start(ctx, unified.Cache.DefaultTTL*2)

	// Setup Fiber
	app := fiber.New()

	app.Use(logger.New())
	app.Use(cors.New())

	handlers.SetupRoutes(app, handlers.Routes{
		Market:      handlers.NewMarketHandler(marketData),
		Admin:       handlers.NewAdminHandler(syncJob, fetchMetrics, collectorMetrics, syncMetrics),
		Cache:       handlers.NewCacheHandler(cacheService),
		Tools:       handlers.NewToolHandler(marketTools),
		HealthCheck: healthCheck,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
