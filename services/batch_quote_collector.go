package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ThrottlePolicy decides how the collector spaces out per-instrument work.
// Run must invoke task exactly once for every index in [0, count).
type ThrottlePolicy interface {
	Run(ctx context.Context, count int, task func(ctx context.Context, index int))
}

// FixedDelayThrottle runs tasks one at a time with a minimum delay between starts
type FixedDelayThrottle struct {
	limiter *shared.HTTPRequestRateLimiter
}

// NewFixedDelayThrottle creates a sequential throttle
func NewFixedDelayThrottle(delay time.Duration) *FixedDelayThrottle {
	return &FixedDelayThrottle{limiter: shared.NewHTTPRequestRateLimiter(delay)}
}

// Run executes tasks sequentially. A cancelled wait still runs the task so it can
// record the cancellation as that instrument's failure.
func (throttle *FixedDelayThrottle) Run(ctx context.Context, count int, task func(ctx context.Context, index int)) {
	for i := 0; i < count; i++ {
		if err := throttle.limiter.Wait(ctx); err != nil {
			logrus.WithField("component", "FixedDelayThrottle").WithError(err).Debug("Throttle wait interrupted")
		}
		task(ctx, i)
	}
}

// BoundedConcurrency runs up to limit tasks at once
type BoundedConcurrency struct {
	limit int
}

// NewBoundedConcurrency creates a parallel throttle; limits below one are raised to one
func NewBoundedConcurrency(limit int) *BoundedConcurrency {
	if limit < 1 {
		limit = 1
	}
	return &BoundedConcurrency{limit: limit}
}

// Run executes tasks on an errgroup capped at the configured limit
func (throttle *BoundedConcurrency) Run(ctx context.Context, count int, task func(ctx context.Context, index int)) {
	var group errgroup.Group
	group.SetLimit(throttle.limit)
	for i := 0; i < count; i++ {
		index := i
		group.Go(func() error {
			task(ctx, index)
			return nil
		})
	}
	_ = group.Wait()
}

// NewThrottlePolicy builds the throttle named by the collector mode
func NewThrottlePolicy(config shared.CollectorConfig) ThrottlePolicy {
	if config.Mode == shared.CollectorModeParallel {
		return NewBoundedConcurrency(config.MaxConcurrency)
	}
	return NewFixedDelayThrottle(config.RequestRateLimit)
}

// CollectorOptions configures a BatchQuoteCollector at construction
type CollectorOptions struct {
	Throttle             ThrottlePolicy
	MaxRetryAttempts     int
	RetryInitialInterval time.Duration
	OmitFailures         bool
	Metrics              *shared.ServiceMetrics
}

// BatchQuoteCollector fetches and extracts quotes for many instruments, isolating
// each instrument's failure from the rest of the batch
type BatchQuoteCollector struct {
	fetcher              PageFetcher
	extractor            *QuoteExtractor
	throttle             ThrottlePolicy
	maxRetryAttempts     int
	retryInitialInterval time.Duration
	omitFailures         bool
	metrics              *shared.ServiceMetrics
	now                  func() time.Time
}

// NewBatchQuoteCollector creates a collector; a nil throttle defaults to sequential with no delay
func NewBatchQuoteCollector(fetcher PageFetcher, extractor *QuoteExtractor, options CollectorOptions) *BatchQuoteCollector {
	throttle := options.Throttle
	if throttle == nil {
		throttle = NewFixedDelayThrottle(0)
	}
	retryInterval := options.RetryInitialInterval
	if retryInterval <= 0 {
		retryInterval = backoff.DefaultInitialInterval
	}
	if extractor == nil {
		extractor = NewQuoteExtractor()
	}
	return &BatchQuoteCollector{
		fetcher:              fetcher,
		extractor:            extractor,
		throttle:             throttle,
		maxRetryAttempts:     options.MaxRetryAttempts,
		retryInitialInterval: retryInterval,
		omitFailures:         options.OmitFailures,
		metrics:              options.Metrics,
		now:                  time.Now,
	}
}

// NewBatchQuoteCollectorFromConfig wires a collector from the collector configuration
func NewBatchQuoteCollectorFromConfig(fetcher PageFetcher, extractor *QuoteExtractor, config shared.CollectorConfig, metrics *shared.ServiceMetrics) *BatchQuoteCollector {
	return NewBatchQuoteCollector(fetcher, extractor, CollectorOptions{
		Throttle:         NewThrottlePolicy(config),
		MaxRetryAttempts: config.MaxRetryAttempts,
		OmitFailures:     config.OmitFailures,
		Metrics:          metrics,
	})
}

// CollectAll returns one result per instrument in input order. Failed instruments carry
// an Unavailable quote and the error, or are dropped when failures are omitted.
func (collector *BatchQuoteCollector) CollectAll(ctx context.Context, instruments []models.Instrument) []models.CollectResult {
	startTime := time.Now()
	results := make([]models.CollectResult, len(instruments))

	collector.throttle.Run(ctx, len(instruments), func(taskCtx context.Context, index int) {
		results[index] = collector.CollectOne(taskCtx, instruments[index])
	})

	failures := 0
	var sampleErrors []error
	collected := make([]models.CollectResult, 0, len(results))
	for _, result := range results {
		if result.Err != nil {
			failures++
			if len(sampleErrors) < 3 {
				sampleErrors = append(sampleErrors, result.Err)
			}
			if collector.omitFailures {
				continue
			}
		}
		collected = append(collected, result)
	}

	logger := logrus.WithFields(logrus.Fields{
		"component":   "BatchQuoteCollector",
		"instruments": len(instruments),
		"failures":    failures,
		"returned":    len(collected),
		"duration":    time.Since(startTime),
	})
	if failures > 0 {
		logger.Warn(shared.BuildBatchProcessingErrorSummary(len(instruments)-failures, failures, sampleErrors))
	} else {
		logger.Info("Batch quote collection completed")
	}

	return collected
}

// CollectOne fetches and extracts a single instrument
func (collector *BatchQuoteCollector) CollectOne(ctx context.Context, instrument models.Instrument) models.CollectResult {
	html, err := collector.fetch(ctx, instrument)
	if err != nil {
		collector.count("fetch_failed")
		logrus.WithFields(logrus.Fields{
			"component": "BatchQuoteCollector",
			"symbol":    instrument.Symbol,
			"retryable": shared.IsRetryableError(err),
		}).WithError(err).Warn("Failed to fetch quote page")

		return models.CollectResult{
			Instrument: instrument,
			Quote:      models.UnavailableQuote(instrument, collector.now().UTC()),
			Err:        err,
		}
	}

	quote := collector.extractor.Extract(html, instrument)
	collector.count("method_" + string(quote.ExtractionMethod))
	return models.CollectResult{Instrument: instrument, Quote: quote}
}

func (collector *BatchQuoteCollector) fetch(ctx context.Context, instrument models.Instrument) (string, error) {
	if collector.maxRetryAttempts <= 0 {
		return collector.fetcher.FetchPage(ctx, instrument)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = collector.retryInitialInterval

	attempt := 0
	operation := func() (string, error) {
		attempt++
		html, err := collector.fetcher.FetchPage(ctx, instrument)
		if err != nil && !shared.IsRetryableError(err) {
			return "", backoff.Permanent(err)
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"component": "BatchQuoteCollector",
				"symbol":    instrument.Symbol,
				"attempt":   attempt,
			}).WithError(err).Debug("Retryable fetch failure")
		}
		return html, err
	}

	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(collector.maxRetryAttempts)), ctx))
}

func (collector *BatchQuoteCollector) count(key string) {
	if collector.metrics != nil {
		collector.metrics.IncrementCustomCounter(key)
	}
}
