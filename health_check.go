//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenilmodi00/market-quotes/config"
	"github.com/fenilmodi00/market-quotes/database"
	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/services"
	"github.com/fenilmodi00/market-quotes/shared"
)

func main() {
	fmt.Printf("🏥 Market Quotes Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	cfg := config.LoadConfig()
	unified := cfg.ToUnified()

	fetcher := services.NewPageFetcher(unified.Fetcher, shared.NewHTTPClientFactory(unified.Fetcher.HTTPRequestTimeout), nil)
	extractor := services.NewQuoteExtractor()
	ctx := context.Background()

	probes := append([]models.Instrument{models.NewEquity(unified.Sync.StockSymbols[0])}, services.SupportedIndices()...)

	healthScore := 0
	totalTests := len(probes) + 1

	for _, instrument := range probes {
		fmt.Printf("📡 %s (%s): ", instrument.Symbol, instrument.Kind)
		html, err := fetcher.FetchPage(ctx, instrument)
		if err != nil {
			fmt.Printf("❌ FAILED (%v)\n", err)
			continue
		}
		quote := extractor.Extract(html, instrument)
		if !quote.IsAvailable() {
			fmt.Println("⚠️  page fetched but no quote data extracted")
			continue
		}
		fmt.Printf("✅ OK (%s %s %s via %s)\n", quote.Price.StringFixed(2), quote.Change.StringFixed(2), quote.ChangePercent, quote.ExtractionMethod)
		healthScore++
	}

	fmt.Print("🗄️  Database: ")
	if cfg.DatabaseURL == "" {
		fmt.Println("⏭️  SKIPPED (DATABASE_URL not set)")
		totalTests--
	} else if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		if quotes, err := database.NewQuoteRepository(database.DB).SelectAll(ctx); err != nil {
			fmt.Printf("❌ FAILED (%v)\n", err)
		} else {
			fmt.Printf("✅ OK (%d stored quotes)\n", len(quotes))
			healthScore++
		}
		database.Close()
	}

	fmt.Println(strings.Repeat("-", 50))
	healthPercent := float64(healthScore) / float64(totalTests) * 100

	if healthScore == totalTests {
		fmt.Printf("🎉 SYSTEM HEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else if healthScore >= totalTests/2 {
		fmt.Printf("⚠️  SYSTEM DEGRADED: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else {
		fmt.Printf("❌ SYSTEM UNHEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}

	fmt.Printf("⏰ Check completed at: %s\n", time.Now().Format("15:04:05"))
}
