package services

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/sirupsen/logrus"
)

// BrowserPageFetcher renders quote pages in headless Chrome for script-built markup
type BrowserPageFetcher struct {
	resolver      *QuoteURLResolver
	timeout       time.Duration
	readySelector string
	metrics       *shared.ServiceMetrics
}

// NewBrowserPageFetcher creates a chromedp-backed page fetcher
func NewBrowserPageFetcher(config shared.FetcherConfig, metrics *shared.ServiceMetrics) *BrowserPageFetcher {
	return &BrowserPageFetcher{
		resolver:      NewQuoteURLResolver(config),
		timeout:       config.HTTPRequestTimeout,
		readySelector: "body",
		metrics:       metrics,
	}
}

// FetchPage navigates to the quote page and returns the rendered document HTML
func (fetcher *BrowserPageFetcher) FetchPage(ctx context.Context, instrument models.Instrument) (string, error) {
	pageURL, err := fetcher.resolver.Resolve(instrument)
	if err != nil {
		return "", err
	}

	startTime := time.Now()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(shared.BrowserUserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, fetcher.timeout)
	defer cancelTimeout()

	var html string
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(fetcher.readySelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		fetcher.record(false, startTime)
		logrus.WithFields(logrus.Fields{
			"component": "BrowserPageFetcher",
			"symbol":    instrument.Symbol,
			"url":       pageURL,
		}).WithError(err).Warn("Headless quote page render failed")

		fetchErr := classifyTransportError(instrument.Symbol, pageURL, err)
		if browserCtx.Err() != nil {
			fetchErr.Timeout = true
		}
		return "", fetchErr
	}

	fetcher.record(true, startTime)
	return html, nil
}

func (fetcher *BrowserPageFetcher) record(success bool, startTime time.Time) {
	if fetcher.metrics != nil {
		fetcher.metrics.RecordRequest(success, time.Since(startTime))
	}
}
