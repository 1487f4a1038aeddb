package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/sirupsen/logrus"
)

// MaxSymbolsPerRequest bounds on-demand multi-symbol reads
const MaxSymbolsPerRequest = 25

// MarketDataService serves on-demand quote reads through a short TTL cache,
// and stored quotes straight from the QuoteStore
type MarketDataService struct {
	collector    *BatchQuoteCollector
	store        QuoteStore
	cache        *CacheService
	stockSymbols []string
	now          func() time.Time
}

// NewMarketDataService creates the read service; cache may be nil to disable caching
func NewMarketDataService(collector *BatchQuoteCollector, store QuoteStore, cache *CacheService, stockSymbols []string) *MarketDataService {
	return &MarketDataService{
		collector:    collector,
		store:        store,
		cache:        cache,
		stockSymbols: append([]string(nil), stockSymbols...),
		now:          time.Now,
	}
}

// GetStockQuote fetches one equity quote, serving from cache when fresh
func (s *MarketDataService) GetStockQuote(ctx context.Context, symbol string) (models.Quote, error) {
	instrument := models.NewEquity(symbol)
	if instrument.Symbol == "" {
		return models.Quote{}, shared.NewServiceError(shared.ErrorCategoryValidation, "EMPTY_SYMBOL",
			"symbol is required", "MarketDataService", "GetStockQuote", false, nil)
	}
	return s.readThrough(ctx, instrument)
}

// GetIndexQuote fetches one supported index quote
func (s *MarketDataService) GetIndexQuote(ctx context.Context, identifier string) (models.Quote, error) {
	instrument, err := LookupIndex(identifier)
	if err != nil {
		return models.Quote{}, err
	}
	return s.readThrough(ctx, instrument)
}

// GetIndices fetches every supported index
func (s *MarketDataService) GetIndices(ctx context.Context) models.QuoteBatch {
	return models.NewQuoteBatch(s.collectThrough(ctx, SupportedIndices()))
}

// GetMultipleStocks fetches several equities; per-symbol failures are reported, not fatal
func (s *MarketDataService) GetMultipleStocks(ctx context.Context, symbols []string) (models.QuoteBatch, error) {
	instruments := make([]models.Instrument, 0, len(symbols))
	seen := make(map[string]bool)
	for _, symbol := range symbols {
		instrument := models.NewEquity(symbol)
		if instrument.Symbol == "" || seen[instrument.Symbol] {
			continue
		}
		seen[instrument.Symbol] = true
		instruments = append(instruments, instrument)
	}

	if len(instruments) == 0 {
		return models.QuoteBatch{}, shared.NewServiceError(shared.ErrorCategoryValidation, "EMPTY_SYMBOLS",
			"at least one symbol is required", "MarketDataService", "GetMultipleStocks", false, nil)
	}
	if len(instruments) > MaxSymbolsPerRequest {
		return models.QuoteBatch{}, shared.NewServiceError(shared.ErrorCategoryValidation, "TOO_MANY_SYMBOLS",
			fmt.Sprintf("at most %d symbols per request", MaxSymbolsPerRequest),
			"MarketDataService", "GetMultipleStocks", false, nil).WithDetails(map[string]int{"requested": len(instruments)})
	}

	return models.NewQuoteBatch(s.collectThrough(ctx, instruments)), nil
}

// GetMarketOverview fetches both indices and the configured stock list
func (s *MarketDataService) GetMarketOverview(ctx context.Context) *models.MarketOverview {
	indices := s.GetIndices(ctx)

	instruments := make([]models.Instrument, 0, len(s.stockSymbols))
	for _, symbol := range s.stockSymbols {
		instruments = append(instruments, models.NewEquity(symbol))
	}
	stocks := models.NewQuoteBatch(s.collectThrough(ctx, instruments))

	overview := &models.MarketOverview{
		Indices:     indices.Quotes,
		Stocks:      stocks.Quotes,
		GeneratedAt: s.now().UTC(),
	}
	for symbol, message := range indices.Errors {
		overview.AddError(symbol, message)
	}
	for symbol, message := range stocks.Errors {
		overview.AddError(symbol, message)
	}

	for _, quote := range overview.Stocks {
		switch {
		case !quote.IsAvailable():
			overview.Unavailable++
		case quote.Change.IsPositive():
			overview.Gainers++
		case quote.Change.IsNegative():
			overview.Losers++
		}
	}

	return overview
}

// StoredQuotes returns the quotes persisted by the sync job
func (s *MarketDataService) StoredQuotes(ctx context.Context) ([]models.Quote, error) {
	return s.store.SelectAll(ctx)
}

// StoredQuote returns the persisted quote for one symbol
func (s *MarketDataService) StoredQuote(ctx context.Context, symbol string) (models.Quote, error) {
	return s.store.Get(ctx, symbol)
}

func (s *MarketDataService) readThrough(ctx context.Context, instrument models.Instrument) (models.Quote, error) {
	key := cacheKey(instrument)
	if quote, ok := s.cachedQuote(key); ok {
		return quote, nil
	}

	result := s.collector.CollectOne(ctx, instrument)
	if result.Err != nil {
		return models.Quote{}, result.Err
	}
	s.remember(key, result.Quote)
	return result.Quote, nil
}

// collectThrough serves cached instruments and collects the rest in one batch, keeping input order
func (s *MarketDataService) collectThrough(ctx context.Context, instruments []models.Instrument) []models.CollectResult {
	results := make([]models.CollectResult, len(instruments))
	var missing []models.Instrument
	var missingIndex []int

	for i, instrument := range instruments {
		if quote, ok := s.cachedQuote(cacheKey(instrument)); ok {
			results[i] = models.CollectResult{Instrument: instrument, Quote: quote}
			continue
		}
		missing = append(missing, instrument)
		missingIndex = append(missingIndex, i)
	}

	if len(missing) == 0 {
		return results
	}

	collected := s.collector.CollectAll(ctx, missing)
	bySymbol := make(map[string]models.CollectResult, len(collected))
	for _, result := range collected {
		bySymbol[result.Instrument.Symbol] = result
		if result.Err == nil {
			s.remember(cacheKey(result.Instrument), result.Quote)
		}
	}

	merged := make([]models.CollectResult, 0, len(results))
	missingPosition := 0
	for i := range results {
		if missingPosition < len(missingIndex) && missingIndex[missingPosition] == i {
			instrument := missing[missingPosition]
			missingPosition++
			if result, ok := bySymbol[instrument.Symbol]; ok {
				merged = append(merged, result)
			}
			continue
		}
		merged = append(merged, results[i])
	}
	return merged
}

func (s *MarketDataService) cachedQuote(key string) (models.Quote, bool) {
	if s.cache == nil {
		return models.Quote{}, false
	}
	cached, found := s.cache.Get(key)
	if !found {
		return models.Quote{}, false
	}
	quote, ok := cached.(models.Quote)
	return quote, ok
}

func (s *MarketDataService) remember(key string, quote models.Quote) {
	if s.cache == nil || !quote.IsAvailable() {
		return
	}
	s.cache.Set(key, quote)
	logrus.WithFields(logrus.Fields{
		"component": "MarketDataService",
		"cache_key": key,
	}).Debug("Cached on-demand quote")
}

func cacheKey(instrument models.Instrument) string {
	return fmt.Sprintf("quote:%s:%s", instrument.Kind, instrument.Symbol)
}
