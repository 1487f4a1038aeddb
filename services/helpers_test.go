package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/shopspring/decimal"
)

// fakePageFetcher serves canned pages and errors keyed by symbol
type fakePageFetcher struct {
	mutex  sync.Mutex
	pages  map[string]string
	errs   map[string][]error
	calls  map[string]int
	delays map[string]time.Duration
}

func newFakePageFetcher() *fakePageFetcher {
	return &fakePageFetcher{
		pages:  make(map[string]string),
		errs:   make(map[string][]error),
		calls:  make(map[string]int),
		delays: make(map[string]time.Duration),
	}
}

func (f *fakePageFetcher) withPage(symbol, html string) *fakePageFetcher {
	f.pages[symbol] = html
	return f
}

// withErrors queues errors returned by successive calls before the page is served
func (f *fakePageFetcher) withErrors(symbol string, errs ...error) *fakePageFetcher {
	f.errs[symbol] = append(f.errs[symbol], errs...)
	return f
}

func (f *fakePageFetcher) withDelay(symbol string, delay time.Duration) *fakePageFetcher {
	f.delays[symbol] = delay
	return f
}

func (f *fakePageFetcher) FetchPage(ctx context.Context, instrument models.Instrument) (string, error) {
	f.mutex.Lock()
	f.calls[instrument.Symbol]++
	delay := f.delays[instrument.Symbol]
	var err error
	if queued := f.errs[instrument.Symbol]; len(queued) > 0 {
		err = queued[0]
		f.errs[instrument.Symbol] = queued[1:]
	}
	html, ok := f.pages[instrument.Symbol]
	f.mutex.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no page for %s", instrument.Symbol)
	}
	return html, nil
}

func (f *fakePageFetcher) callCount(symbol string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls[symbol]
}

func quotePage(price, change, percent string) string {
	return page(fmt.Sprintf(`<div class="YMlKec fxKbKc">₹%s</div><div class="JwB6zf">%s (%s)</div>`, price, change, percent))
}

func sampleQuote(symbol, price string, capturedAt time.Time) models.Quote {
	return models.Quote{
		Symbol:           symbol,
		Kind:             models.KindEquity,
		Price:            decimal.RequireFromString(price),
		Change:           decimal.RequireFromString("1.50"),
		ChangePercent:    "+0.50%",
		Exchange:         models.DefaultExchange,
		CapturedAt:       capturedAt,
		ExtractionMethod: models.MethodDirectParse,
	}
}
