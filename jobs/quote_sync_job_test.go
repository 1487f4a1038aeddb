package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/services"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/stretchr/testify/require"
)

func quotePage(price, change, percent string) string {
	return fmt.Sprintf(`<html><body><div class="YMlKec fxKbKc">₹%s</div><div class="JwB6zf">%s (%s)</div></body></html>`, price, change, percent)
}

// stubFetcher serves the same page for every instrument unless a failure is configured
type stubFetcher struct {
	html     string
	failures map[string]error
	pages    map[string]string
	started  chan struct{}
	release  chan struct{}
	once     sync.Once
}

func (f *stubFetcher) FetchPage(ctx context.Context, instrument models.Instrument) (string, error) {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.failures[instrument.Symbol]; ok {
		return "", err
	}
	if html, ok := f.pages[instrument.Symbol]; ok {
		return html, nil
	}
	return f.html, nil
}

// failingStore rejects upserts for the configured symbols
type failingStore struct {
	*services.MemoryQuoteStore
	reject map[string]bool
}

func (s *failingStore) Upsert(ctx context.Context, quote models.Quote) error {
	if s.reject[quote.Symbol] {
		return &shared.StoreError{Symbol: quote.Symbol, Operation: "upsert", Cause: errors.New("disk full")}
	}
	return s.MemoryQuoteStore.Upsert(ctx, quote)
}

func newTestSyncJob(fetcher services.PageFetcher, store services.QuoteStore, symbols ...string) (*QuoteSyncJob, *shared.ServiceMetrics) {
	collector := services.NewBatchQuoteCollector(fetcher, nil, services.CollectorOptions{})
	metrics := shared.NewServiceMetrics("sync-test")
	job := NewQuoteSyncJob(collector, store, shared.SyncConfig{
		StockSymbols: symbols,
		RunTimeout:   5 * time.Second,
	}, metrics)
	return job, metrics
}

func outcomeFor(t *testing.T, report *models.SyncReport, symbol string) models.SymbolOutcome {
	t.Helper()
	for _, outcome := range report.Outcomes {
		if outcome.Symbol == symbol {
			return outcome
		}
	}
	t.Fatalf("no outcome for %s", symbol)
	return models.SymbolOutcome{}
}

func TestSyncOnceStoresEveryInstrument(t *testing.T) {
	store := services.NewMemoryQuoteStore()
	fetcher := &stubFetcher{html: quotePage("2,980.50", "+45.20", "+1.54%")}
	job, metrics := newTestSyncJob(fetcher, store, "RELIANCE", "TCS")

	report, err := job.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusSuccess, report.Status)
	require.Len(t, report.Outcomes, 4)
	require.Equal(t, 4, report.StoredCount())
	require.Same(t, report, job.LastReport())

	quotes, err := store.SelectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 4)

	require.Equal(t, int64(1), metrics.GetSnapshot().Counters["sync_success"])
}

func TestSyncOnceIsolatesStoreFailures(t *testing.T) {
	store := &failingStore{MemoryQuoteStore: services.NewMemoryQuoteStore(), reject: map[string]bool{"TCS": true}}
	fetcher := &stubFetcher{html: quotePage("3,900.00", "-20.00", "-0.51%")}
	job, _ := newTestSyncJob(fetcher, store, "RELIANCE", "TCS", "INFY")

	report, err := job.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusPartial, report.Status)
	require.Equal(t, 4, report.StoredCount())

	failed := outcomeFor(t, report, "TCS")
	require.False(t, failed.Stored)
	require.Contains(t, failed.Error, "disk full")

	_, err = store.Get(context.Background(), "INFY")
	require.NoError(t, err)
}

func TestSyncOnceSkipsUpsertOnFetchFailure(t *testing.T) {
	store := services.NewMemoryQuoteStore()
	fetcher := &stubFetcher{
		html:     quotePage("1,520.00", "-12.30", "-0.80%"),
		failures: map[string]error{"INFY": &shared.FetchError{Symbol: "INFY", Status: 503}},
		pages:    map[string]string{"ITC": `<html><body><p>maintenance</p></body></html>`},
	}
	job, _ := newTestSyncJob(fetcher, store, "INFY", "ITC")

	report, err := job.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusPartial, report.Status)

	fetchFailed := outcomeFor(t, report, "INFY")
	require.False(t, fetchFailed.Stored)
	require.NotEmpty(t, fetchFailed.Error)
	_, err = store.Get(context.Background(), "INFY")
	require.ErrorIs(t, err, shared.ErrQuoteNotFound)

	degraded := outcomeFor(t, report, "ITC")
	require.True(t, degraded.Stored)
	require.Equal(t, models.MethodUnavailable, degraded.Method)
	require.Contains(t, degraded.Error, "no price or change data")
}

func TestSyncOnceAllFailures(t *testing.T) {
	store := services.NewMemoryQuoteStore()
	fetcher := &stubFetcher{failures: map[string]error{
		"RELIANCE": errors.New("connection refused"),
		"NIFTY50":  errors.New("connection refused"),
		"SENSEX":   errors.New("connection refused"),
	}}
	job, metrics := newTestSyncJob(fetcher, store, "RELIANCE")

	report, err := job.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusFailed, report.Status)
	require.Zero(t, report.StoredCount())
	require.Equal(t, int64(1), metrics.GetSnapshot().Counters["sync_failed"])
}

func TestSyncOnceStaleQuoteIsNotFailure(t *testing.T) {
	store := services.NewMemoryQuoteStore()
	future := models.Quote{Symbol: "RELIANCE", Kind: models.KindEquity, CapturedAt: time.Now().Add(time.Hour), ExtractionMethod: models.MethodDirectParse}
	require.NoError(t, store.Upsert(context.Background(), future))

	fetcher := &stubFetcher{html: quotePage("2,980.50", "+45.20", "+1.54%")}
	job, _ := newTestSyncJob(fetcher, store, "RELIANCE")

	report, err := job.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.SyncStatusSuccess, report.Status)

	stale := outcomeFor(t, report, "RELIANCE")
	require.False(t, stale.Stored)
	require.Equal(t, shared.ErrStaleQuote.Error(), stale.Error)
}

func TestSyncOnceSkipsOverlappingRuns(t *testing.T) {
	fetcher := &stubFetcher{
		html:    quotePage("2,980.50", "+45.20", "+1.54%"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	job, _ := newTestSyncJob(fetcher, services.NewMemoryQuoteStore(), "RELIANCE")

	type runResult struct {
		report *models.SyncReport
		err    error
	}
	firstRun := make(chan runResult, 1)
	go func() {
		report, err := job.SyncOnce(context.Background())
		firstRun <- runResult{report: report, err: err}
	}()

	<-fetcher.started
	require.True(t, job.IsRunning())

	skipped, err := job.SyncOnce(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)
	require.Equal(t, models.SyncStatusSkipped, skipped.Status)
	require.Empty(t, skipped.Outcomes)

	close(fetcher.release)
	result := <-firstRun
	require.NoError(t, result.err)
	require.Equal(t, models.SyncStatusSuccess, result.report.Status)
	require.False(t, job.IsRunning())
	require.Same(t, result.report, job.LastReport())
}

func TestStartStopsOnCancel(t *testing.T) {
	fetcher := &stubFetcher{html: quotePage("2,980.50", "+45.20", "+1.54%")}
	store := services.NewMemoryQuoteStore()
	collector := services.NewBatchQuoteCollector(fetcher, nil, services.CollectorOptions{})
	job := NewQuoteSyncJob(collector, store, shared.SyncConfig{StockSymbols: []string{"TCS"}, RunOnStart: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx, time.Hour)

	require.Eventually(t, func() bool { return job.LastReport() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-job.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sync job did not stop after cancellation")
	}
	require.Equal(t, models.SyncStatusSuccess, job.LastReport().Status)
}

func TestStartIgnoresRepeatedCalls(t *testing.T) {
	fetcher := &stubFetcher{html: quotePage("2,980.50", "+45.20", "+1.54%")}
	collector := services.NewBatchQuoteCollector(fetcher, nil, services.CollectorOptions{})
	job := NewQuoteSyncJob(collector, services.NewMemoryQuoteStore(), shared.SyncConfig{StockSymbols: []string{"TCS"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NotPanics(t, func() {
		job.Start(ctx, time.Hour)
		job.Start(ctx, time.Hour)
	})
	cancel()

	select {
	case <-job.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sync job did not stop after cancellation")
	}
}

func TestCacheCleanupJobRun(t *testing.T) {
	cache := services.NewCacheService(time.Millisecond, 10)
	cache.Set("quote:equity:ITC", "512.40")
	time.Sleep(5 * time.Millisecond)

	job := NewCacheCleanupJob(cache)
	require.Equal(t, 1, job.Run())
	require.Zero(t, cache.Size())
}
