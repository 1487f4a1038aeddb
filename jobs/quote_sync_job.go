package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/services"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrSyncInProgress is returned when a sync is triggered while another is running
var ErrSyncInProgress = errors.New("quote sync already in progress")

// QuoteSyncJob collects the configured stocks and both indices and upserts them into the store.
// At most one run executes at a time; overlapping triggers are skipped.
type QuoteSyncJob struct {
	collector    *services.BatchQuoteCollector
	store        services.QuoteStore
	stockSymbols []string
	runTimeout   time.Duration
	runOnStart   bool
	metrics      *shared.ServiceMetrics

	running    atomic.Bool
	startOnce  sync.Once
	mutex      sync.RWMutex
	lastReport *models.SyncReport
	done       chan struct{}
	now        func() time.Time
}

func NewQuoteSyncJob(collector *services.BatchQuoteCollector, store services.QuoteStore, config shared.SyncConfig, metrics *shared.ServiceMetrics) *QuoteSyncJob {
	return &QuoteSyncJob{
		collector:    collector,
		store:        store,
		stockSymbols: append([]string(nil), config.StockSymbols...),
		runTimeout:   config.RunTimeout,
		runOnStart:   config.RunOnStart,
		metrics:      metrics,
		done:         make(chan struct{}),
		now:          time.Now,
	}
}

// Instruments returns the configured stocks followed by the supported indices
func (j *QuoteSyncJob) Instruments() []models.Instrument {
	instruments := make([]models.Instrument, 0, len(j.stockSymbols)+2)
	for _, symbol := range j.stockSymbols {
		instruments = append(instruments, models.NewEquity(symbol))
	}
	return append(instruments, services.SupportedIndices()...)
}

// IsRunning reports whether a run is in progress
func (j *QuoteSyncJob) IsRunning() bool {
	return j.running.Load()
}

// LastReport returns the report of the most recent completed run, or nil
func (j *QuoteSyncJob) LastReport() *models.SyncReport {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.lastReport
}

// Start runs the job every interval until ctx is cancelled. Only the first call starts the loop.
func (j *QuoteSyncJob) Start(ctx context.Context, interval time.Duration) {
	started := false
	j.startOnce.Do(func() {
		started = true
		j.startLoop(ctx, interval)
	})
	if !started {
		logrus.WithField("component", "QuoteSyncJob").Warn("Quote Sync Job already started, ignoring Start")
	}
}

func (j *QuoteSyncJob) startLoop(ctx context.Context, interval time.Duration) {
	logrus.WithFields(logrus.Fields{
		"component": "QuoteSyncJob",
		"interval":  interval,
		"symbols":   len(j.stockSymbols),
	}).Info("Starting Quote Sync Job")

	ticker := time.NewTicker(interval)

	go func() {
		defer close(j.done)
		defer ticker.Stop()

		if j.runOnStart {
			j.Run(ctx)
		}

		for {
			select {
			case <-ctx.Done():
				logrus.WithField("component", "QuoteSyncJob").Info("Quote Sync Job stopped")
				return
			case <-ticker.C:
				j.Run(ctx)
			}
		}
	}()
}

// Done is closed once the Start loop has exited
func (j *QuoteSyncJob) Done() <-chan struct{} {
	return j.done
}

// Run performs one sync and logs the outcome; the scheduled path surfaces no errors
func (j *QuoteSyncJob) Run(ctx context.Context) {
	report, err := j.SyncOnce(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		logrus.WithField("component", "QuoteSyncJob").Warn("Previous sync still running, skipping this trigger")
		return
	}

	logger := logrus.WithFields(logrus.Fields{
		"component": "QuoteSyncJob",
		"run_id":    report.RunID,
		"status":    report.Status,
		"stored":    report.StoredCount(),
		"symbols":   len(report.Outcomes),
		"duration":  report.Duration(),
	})
	if report.Status == models.SyncStatusSuccess {
		logger.Info("Quote Sync Job completed successfully")
	} else {
		logger.Warn("Quote Sync Job completed with failures")
	}
}

// SyncOnce collects and upserts every instrument once. A concurrent call returns a
// skipped report together with ErrSyncInProgress.
func (j *QuoteSyncJob) SyncOnce(ctx context.Context) (*models.SyncReport, error) {
	if !j.running.CompareAndSwap(false, true) {
		now := j.now().UTC()
		return &models.SyncReport{
			RunID:      uuid.New(),
			StartedAt:  now,
			FinishedAt: now,
			Status:     models.SyncStatusSkipped,
			Outcomes:   []models.SymbolOutcome{},
		}, ErrSyncInProgress
	}
	defer j.running.Store(false)

	report := &models.SyncReport{
		RunID:     uuid.New(),
		StartedAt: j.now().UTC(),
	}

	runCtx := ctx
	if j.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, j.runTimeout)
		defer cancel()
	}

	results := j.collector.CollectAll(runCtx, j.Instruments())

	failures := 0
	report.Outcomes = make([]models.SymbolOutcome, 0, len(results))
	for _, result := range results {
		outcome, failed := j.reconcile(runCtx, result, report.RunID)
		if failed {
			failures++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.FinishedAt = j.now().UTC()
	report.Status = syncStatus(failures, report.StoredCount())

	j.mutex.Lock()
	j.lastReport = report
	j.mutex.Unlock()

	if j.metrics != nil {
		j.metrics.RecordRequest(report.Status == models.SyncStatusSuccess, report.Duration())
		j.metrics.IncrementCustomCounter("sync_" + string(report.Status))
		j.metrics.LogSummary()
	}

	return report, nil
}

// reconcile upserts one collected result and reports whether it counts as a failure
func (j *QuoteSyncJob) reconcile(ctx context.Context, result models.CollectResult, runID uuid.UUID) (models.SymbolOutcome, bool) {
	outcome := models.SymbolOutcome{
		Symbol: result.Instrument.Symbol,
		Method: result.Quote.ExtractionMethod,
	}
	logger := logrus.WithFields(logrus.Fields{
		"component": "QuoteSyncJob",
		"run_id":    runID,
		"symbol":    outcome.Symbol,
	})

	if result.Err != nil {
		outcome.Error = result.Err.Error()
		logger.WithError(result.Err).Warn("Skipping upsert for symbol that failed to fetch")
		return outcome, true
	}

	failed := false
	if !result.Quote.IsAvailable() {
		failed = true
		outcome.Error = (&shared.ExtractionFailure{Symbol: outcome.Symbol, Reason: "no price or change data on page"}).Error()
	}

	err := j.store.Upsert(ctx, result.Quote)
	switch {
	case err == nil:
		outcome.Stored = true
	case errors.Is(err, shared.ErrStaleQuote):
		outcome.Error = err.Error()
		logger.Info("Stored quote is fresher, keeping it")
	default:
		failed = true
		outcome.Error = err.Error()
		shared.WrapError(err, shared.ErrorCategoryDatabase, "QUOTE_UPSERT_FAILED", "QuoteSyncJob", "Upsert", true).LogError()
	}

	return outcome, failed
}

func syncStatus(failures, stored int) models.SyncStatus {
	switch {
	case failures == 0:
		return models.SyncStatusSuccess
	case stored == 0:
		return models.SyncStatusFailed
	default:
		return models.SyncStatusPartial
	}
}
