package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/sirupsen/logrus"
)

// PageFetcher retrieves the raw quote page for one instrument. Implementations never
// retry and never cache; both are the caller's concern.
type PageFetcher interface {
	FetchPage(ctx context.Context, instrument models.Instrument) (string, error)
}

// marketIndex maps a public index identifier to its upstream page path
type marketIndex struct {
	Identifier string
	Path       string
	Name       string
}

var supportedIndices = map[string]marketIndex{
	"NIFTY50": {Identifier: "NIFTY50", Path: "NIFTY_50:INDEXNSE", Name: "NIFTY 50"},
	"SENSEX":  {Identifier: "SENSEX", Path: "SENSEX:INDEXBOM", Name: "SENSEX"},
}

// SupportedIndexIDs returns the index identifiers accepted by LookupIndex, sorted
func SupportedIndexIDs() []string {
	ids := make([]string, 0, len(supportedIndices))
	for id := range supportedIndices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LookupIndex resolves an index identifier into an instrument with its display name
func LookupIndex(identifier string) (models.Instrument, error) {
	index, ok := supportedIndices[models.NormalizeSymbol(identifier)]
	if !ok {
		return models.Instrument{}, &shared.UnknownInstrumentError{
			Identifier: identifier,
			Supported:  SupportedIndexIDs(),
		}
	}
	return models.Instrument{Symbol: index.Identifier, Kind: models.KindIndex, Name: index.Name}, nil
}

// SupportedIndices returns every supported index as an instrument, sorted by identifier
func SupportedIndices() []models.Instrument {
	instruments := make([]models.Instrument, 0, len(supportedIndices))
	for _, id := range SupportedIndexIDs() {
		instrument, _ := LookupIndex(id)
		instruments = append(instruments, instrument)
	}
	return instruments
}

// QuoteURLResolver turns instruments into upstream page URLs
type QuoteURLResolver struct {
	quoteURLTemplate string
	indexURLTemplate string
}

// NewQuoteURLResolver creates a resolver from the fetcher configuration templates
func NewQuoteURLResolver(config shared.FetcherConfig) *QuoteURLResolver {
	return &QuoteURLResolver{
		quoteURLTemplate: config.QuoteURLTemplate,
		indexURLTemplate: config.IndexURLTemplate,
	}
}

// Resolve returns the page URL, or UnknownInstrumentError for unsupported indices
func (resolver *QuoteURLResolver) Resolve(instrument models.Instrument) (string, error) {
	switch instrument.Kind {
	case models.KindIndex:
		index, ok := supportedIndices[models.NormalizeSymbol(instrument.Symbol)]
		if !ok {
			return "", &shared.UnknownInstrumentError{Identifier: instrument.Symbol, Supported: SupportedIndexIDs()}
		}
		return fmt.Sprintf(resolver.indexURLTemplate, index.Path), nil
	default:
		symbol := models.NormalizeSymbol(instrument.Symbol)
		if symbol == "" {
			return "", shared.NewServiceError(shared.ErrorCategoryValidation, "EMPTY_SYMBOL",
				"instrument symbol is empty", "MarketPageFetcher", "Resolve", false, nil)
		}
		return fmt.Sprintf(resolver.quoteURLTemplate, url.PathEscape(symbol)), nil
	}
}

// MarketPageFetcher fetches quote pages over plain HTTP with browser-like headers
type MarketPageFetcher struct {
	resolver     *QuoteURLResolver
	httpClient   *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	metrics      *shared.ServiceMetrics
}

// NewMarketPageFetcher creates an HTTP page fetcher using the pooled client factory
func NewMarketPageFetcher(config shared.FetcherConfig, clientFactory *shared.HTTPClientFactory, metrics *shared.ServiceMetrics) *MarketPageFetcher {
	return &MarketPageFetcher{
		resolver:     NewQuoteURLResolver(config),
		httpClient:   clientFactory.CreateOptimizedHTTPClient(config.HTTPRequestTimeout),
		timeout:      config.HTTPRequestTimeout,
		maxBodyBytes: config.MaxBodyBytes,
		metrics:      metrics,
	}
}

// FetchPage performs one GET for the instrument's quote page
func (fetcher *MarketPageFetcher) FetchPage(ctx context.Context, instrument models.Instrument) (string, error) {
	pageURL, err := fetcher.resolver.Resolve(instrument)
	if err != nil {
		return "", err
	}

	startTime := time.Now()
	logger := logrus.WithFields(logrus.Fields{
		"component": "MarketPageFetcher",
		"symbol":    instrument.Symbol,
		"url":       pageURL,
	})

	requestCtx, cancel := context.WithTimeout(ctx, fetcher.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &shared.FetchError{Symbol: instrument.Symbol, URL: pageURL, Network: true, Cause: err}
	}
	shared.SetBrowserLikeHeaders(request, shared.HTMLAcceptHeader)

	response, err := fetcher.httpClient.Do(request)
	if err != nil {
		fetcher.record(false, startTime)
		fetchErr := classifyTransportError(instrument.Symbol, pageURL, err)
		logger.WithError(err).Warn("Quote page request failed")
		return "", fetchErr
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		fetcher.record(false, startTime)
		logger.WithField("status_code", response.StatusCode).Warn("Quote page returned non-success status")
		return "", &shared.FetchError{Symbol: instrument.Symbol, URL: pageURL, Status: response.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, fetcher.maxBodyBytes))
	if err != nil {
		fetcher.record(false, startTime)
		return "", classifyTransportError(instrument.Symbol, pageURL, err)
	}

	fetcher.record(true, startTime)
	logger.WithFields(logrus.Fields{
		"bytes":    len(body),
		"duration": time.Since(startTime),
	}).Debug("Fetched quote page")

	return string(body), nil
}

func (fetcher *MarketPageFetcher) record(success bool, startTime time.Time) {
	if fetcher.metrics != nil {
		fetcher.metrics.RecordRequest(success, time.Since(startTime))
	}
}

// classifyTransportError maps a failed round trip onto FetchError
func classifyTransportError(symbol, pageURL string, err error) *shared.FetchError {
	fetchErr := &shared.FetchError{Symbol: symbol, URL: pageURL, Network: true, Cause: err}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		fetchErr.Timeout = true
	}
	return fetchErr
}

// NewPageFetcher selects the fetcher backend named in the configuration
func NewPageFetcher(config shared.FetcherConfig, clientFactory *shared.HTTPClientFactory, metrics *shared.ServiceMetrics) PageFetcher {
	switch config.Backend {
	case shared.FetcherBackendColly:
		return NewCollyPageFetcher(config, metrics)
	case shared.FetcherBackendBrowser:
		return NewBrowserPageFetcher(config, metrics)
	default:
		return NewMarketPageFetcher(config, clientFactory, metrics)
	}
}
