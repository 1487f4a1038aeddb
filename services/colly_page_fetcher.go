package services

import (
	"context"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// CollyPageFetcher fetches quote pages through a colly collector
type CollyPageFetcher struct {
	resolver     *QuoteURLResolver
	timeout      time.Duration
	maxBodyBytes int64
	metrics      *shared.ServiceMetrics
}

// NewCollyPageFetcher creates a colly-backed page fetcher
func NewCollyPageFetcher(config shared.FetcherConfig, metrics *shared.ServiceMetrics) *CollyPageFetcher {
	return &CollyPageFetcher{
		resolver:     NewQuoteURLResolver(config),
		timeout:      config.HTTPRequestTimeout,
		maxBodyBytes: config.MaxBodyBytes,
		metrics:      metrics,
	}
}

// FetchPage visits the quote page with a fresh collector so no visit history is shared
func (fetcher *CollyPageFetcher) FetchPage(ctx context.Context, instrument models.Instrument) (string, error) {
	pageURL, err := fetcher.resolver.Resolve(instrument)
	if err != nil {
		return "", err
	}

	startTime := time.Now()
	requestCtx, cancel := context.WithTimeout(ctx, fetcher.timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.UserAgent(shared.BrowserUserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(requestCtx),
	)
	c.SetRequestTimeout(fetcher.timeout)
	c.MaxBodySize = int(fetcher.maxBodyBytes)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", shared.HTMLAcceptHeader)
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Cache-Control", "no-cache")
	})

	var body []byte
	statusCode := 0
	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	logger := logrus.WithFields(logrus.Fields{
		"component": "CollyPageFetcher",
		"symbol":    instrument.Symbol,
		"url":       pageURL,
	})

	if err := c.Visit(pageURL); err != nil {
		fetcher.record(false, startTime)
		logger.WithError(err).WithField("status_code", statusCode).Warn("Quote page visit failed")
		if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
			return "", &shared.FetchError{Symbol: instrument.Symbol, URL: pageURL, Status: statusCode, Cause: err}
		}
		return "", classifyTransportError(instrument.Symbol, pageURL, err)
	}

	if statusCode < 200 || statusCode >= 300 {
		fetcher.record(false, startTime)
		return "", &shared.FetchError{Symbol: instrument.Symbol, URL: pageURL, Status: statusCode}
	}

	fetcher.record(true, startTime)
	logger.WithField("bytes", len(body)).Debug("Fetched quote page")
	return string(body), nil
}

func (fetcher *CollyPageFetcher) record(success bool, startTime time.Time) {
	if fetcher.metrics != nil {
		fetcher.metrics.RecordRequest(success, time.Since(startTime))
	}
}
