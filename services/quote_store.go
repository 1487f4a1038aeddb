package services

import (
	"context"
	"sort"
	"sync"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
)

// QuoteStore persists the latest quote per symbol.
// Upsert replaces the stored row unless it was captured later than the incoming quote,
// in which case it returns shared.ErrStaleQuote and leaves the row untouched.
type QuoteStore interface {
	Upsert(ctx context.Context, quote models.Quote) error
	SelectAll(ctx context.Context) ([]models.Quote, error)
	Get(ctx context.Context, symbol string) (models.Quote, error)
}

// MemoryQuoteStore is a process-local QuoteStore
type MemoryQuoteStore struct {
	quotes map[string]models.Quote
	mutex  sync.RWMutex
}

// NewMemoryQuoteStore creates an empty in-memory store
func NewMemoryQuoteStore() *MemoryQuoteStore {
	return &MemoryQuoteStore{quotes: make(map[string]models.Quote)}
}

func (store *MemoryQuoteStore) Upsert(ctx context.Context, quote models.Quote) error {
	if err := ctx.Err(); err != nil {
		return &shared.StoreError{Symbol: quote.Symbol, Operation: "upsert", Cause: err}
	}

	symbol := models.NormalizeSymbol(quote.Symbol)
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if existing, ok := store.quotes[symbol]; ok && existing.CapturedAt.After(quote.CapturedAt) {
		return shared.ErrStaleQuote
	}
	quote.Symbol = symbol
	store.quotes[symbol] = quote
	return nil
}

// SelectAll returns every stored quote ordered by symbol
func (store *MemoryQuoteStore) SelectAll(ctx context.Context) ([]models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, &shared.StoreError{Operation: "select", Cause: err}
	}

	store.mutex.RLock()
	quotes := make([]models.Quote, 0, len(store.quotes))
	for _, quote := range store.quotes {
		quotes = append(quotes, quote)
	}
	store.mutex.RUnlock()

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	return quotes, nil
}

func (store *MemoryQuoteStore) Get(ctx context.Context, symbol string) (models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return models.Quote{}, &shared.StoreError{Symbol: symbol, Operation: "get", Cause: err}
	}

	store.mutex.RLock()
	defer store.mutex.RUnlock()

	quote, ok := store.quotes[models.NormalizeSymbol(symbol)]
	if !ok {
		return models.Quote{}, shared.ErrQuoteNotFound
	}
	return quote, nil
}
