package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/stretchr/testify/require"
)

func newTestMarketData(fetcher PageFetcher, stockSymbols ...string) (*MarketDataService, *MemoryQuoteStore) {
	store := NewMemoryQuoteStore()
	collector := NewBatchQuoteCollector(fetcher, newTestExtractor(), CollectorOptions{})
	service := NewMarketDataService(collector, store, NewCacheService(time.Minute, 100), stockSymbols)
	service.now = func() time.Time { return fixedCaptureTime }
	return service, store
}

func TestGetStockQuoteUsesCache(t *testing.T) {
	fetcher := newFakePageFetcher().withPage("RELIANCE", quotePage("2,980.50", "+45.20", "+1.54%"))
	service, _ := newTestMarketData(fetcher)

	first, err := service.GetStockQuote(context.Background(), "reliance")
	require.NoError(t, err)
	requireDecimal(t, "2980.50", first.Price)

	second, err := service.GetStockQuote(context.Background(), "RELIANCE")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, fetcher.callCount("RELIANCE"))
}

func TestGetStockQuoteDoesNotCacheUnavailable(t *testing.T) {
	fetcher := newFakePageFetcher().withPage("ITC", page(`<div>maintenance</div>`))
	service, _ := newTestMarketData(fetcher)

	for i := 0; i < 2; i++ {
		quote, err := service.GetStockQuote(context.Background(), "ITC")
		require.NoError(t, err)
		require.False(t, quote.IsAvailable())
	}
	require.Equal(t, 2, fetcher.callCount("ITC"))
}

func TestGetStockQuoteValidation(t *testing.T) {
	service, _ := newTestMarketData(newFakePageFetcher())

	_, err := service.GetStockQuote(context.Background(), "   ")
	var serviceErr *shared.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, shared.ErrorCategoryValidation, serviceErr.Category)
	require.Equal(t, "EMPTY_SYMBOL", serviceErr.Code)
}

func TestGetIndexQuote(t *testing.T) {
	fetcher := newFakePageFetcher().withPage("NIFTY50", quotePage("22,450.30", "-85.40", "-0.38%"))
	service, _ := newTestMarketData(fetcher)

	quote, err := service.GetIndexQuote(context.Background(), "nifty50")
	require.NoError(t, err)
	require.Equal(t, models.KindIndex, quote.Kind)
	require.Equal(t, "NIFTY 50", quote.Name)
	require.Empty(t, quote.Exchange)

	_, err = service.GetIndexQuote(context.Background(), "NASDAQ")
	var unknownErr *shared.UnknownInstrumentError
	require.ErrorAs(t, err, &unknownErr)
	require.Zero(t, fetcher.callCount("NASDAQ"))
}

func TestGetMultipleStocks(t *testing.T) {
	fetcher := newFakePageFetcher().
		withPage("TCS", quotePage("3,900.00", "+20.00", "+0.52%")).
		withErrors("WIPRO", &shared.FetchError{Symbol: "WIPRO", Status: http.StatusNotFound}).
		withPage("INFY", quotePage("1,520.00", "-12.30", "-0.80%"))
	service, _ := newTestMarketData(fetcher)

	// warm one symbol so the batch mixes cached and fetched results
	_, err := service.GetStockQuote(context.Background(), "INFY")
	require.NoError(t, err)

	batch, err := service.GetMultipleStocks(context.Background(), []string{"tcs", "INFY", "wipro", "TCS", ""})
	require.NoError(t, err)
	require.Len(t, batch.Quotes, 2)
	require.Equal(t, "TCS", batch.Quotes[0].Symbol)
	require.Equal(t, "INFY", batch.Quotes[1].Symbol)
	require.Contains(t, batch.Errors, "WIPRO")
	require.Equal(t, 1, fetcher.callCount("INFY"))
	require.Equal(t, 1, fetcher.callCount("TCS"))
}

func TestGetMultipleStocksValidation(t *testing.T) {
	service, _ := newTestMarketData(newFakePageFetcher())

	_, err := service.GetMultipleStocks(context.Background(), []string{" ", ""})
	var serviceErr *shared.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "EMPTY_SYMBOLS", serviceErr.Code)

	symbols := make([]string, MaxSymbolsPerRequest+1)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("SYM%d", i)
	}
	_, err = service.GetMultipleStocks(context.Background(), symbols)
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "TOO_MANY_SYMBOLS", serviceErr.Code)
}

func TestGetMarketOverview(t *testing.T) {
	fetcher := newFakePageFetcher().
		withPage("NIFTY50", quotePage("22,450.30", "-85.40", "-0.38%")).
		withErrors("SENSEX", errors.New("connection refused")).
		withPage("RELIANCE", quotePage("2,980.50", "+45.20", "+1.54%")).
		withPage("TCS", quotePage("3,900.00", "-20.00", "-0.51%")).
		withPage("ITC", page(`<div>maintenance</div>`))
	service, _ := newTestMarketData(fetcher, "RELIANCE", "TCS", "ITC")

	overview := service.GetMarketOverview(context.Background())

	require.Len(t, overview.Indices, 1)
	require.Equal(t, "NIFTY50", overview.Indices[0].Symbol)
	require.Len(t, overview.Stocks, 3)
	require.Equal(t, 1, overview.Gainers)
	require.Equal(t, 1, overview.Losers)
	require.Equal(t, 1, overview.Unavailable)
	require.Contains(t, overview.Errors, "SENSEX")
	require.Equal(t, fixedCaptureTime, overview.GeneratedAt)
}

func TestStoredQuotes(t *testing.T) {
	service, store := newTestMarketData(newFakePageFetcher())
	require.NoError(t, store.Upsert(context.Background(), sampleQuote("SBIN", "780.10", fixedCaptureTime)))

	quotes, err := service.StoredQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	quote, err := service.StoredQuote(context.Background(), "sbin")
	require.NoError(t, err)
	require.Equal(t, "SBIN", quote.Symbol)

	_, err = service.StoredQuote(context.Background(), "HDFCBANK")
	require.ErrorIs(t, err, shared.ErrQuoteNotFound)
}
