package models

import "time"

// MarketOverview bundles both indices with the configured stock list
type MarketOverview struct {
	Indices     []Quote           `json:"indices"`
	Stocks      []Quote           `json:"stocks"`
	Gainers     int               `json:"gainers"`
	Losers      int               `json:"losers"`
	Unavailable int               `json:"unavailable"`
	Errors      map[string]string `json:"errors,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// AddError records a per-symbol failure
func (o *MarketOverview) AddError(symbol, message string) {
	if o.Errors == nil {
		o.Errors = make(map[string]string)
	}
	o.Errors[symbol] = message
}

// QuoteBatch is the outcome of a multi-symbol read; failed symbols map to their error text
type QuoteBatch struct {
	Quotes []Quote           `json:"quotes"`
	Errors map[string]string `json:"errors,omitempty"`
}

// NewQuoteBatch splits collect results into quotes and per-symbol errors
func NewQuoteBatch(results []CollectResult) QuoteBatch {
	batch := QuoteBatch{Quotes: make([]Quote, 0, len(results))}
	for _, result := range results {
		if result.Err != nil {
			if batch.Errors == nil {
				batch.Errors = make(map[string]string)
			}
			batch.Errors[result.Instrument.Symbol] = result.Err.Error()
			continue
		}
		batch.Quotes = append(batch.Quotes, result.Quote)
	}
	return batch
}
