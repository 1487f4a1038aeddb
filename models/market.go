package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentKind distinguishes equity quote pages from index quote pages
type InstrumentKind string

const (
	KindEquity InstrumentKind = "equity"
	KindIndex  InstrumentKind = "index"
)

// ExtractionMethod records which heuristic produced a quote's change fields
type ExtractionMethod string

const (
	MethodDirectParse           ExtractionMethod = "DirectParse"
	MethodCandidateListFallback ExtractionMethod = "CandidateListFallback"
	MethodPreviousCloseFallback ExtractionMethod = "PreviousCloseFallback"
	MethodUnavailable           ExtractionMethod = "Unavailable"
)

// ZeroPercent is the textual percent used whenever change data is undeterminable
const ZeroPercent = "0%"

// DefaultExchange is the tag attached to equity quotes
const DefaultExchange = "NSE"

// Instrument identifies one equity symbol or one supported market index
type Instrument struct {
	Symbol string         `json:"symbol"`
	Kind   InstrumentKind `json:"kind"`
	Name   string         `json:"name,omitempty"`
}

// NewEquity returns an equity instrument with a normalized symbol
func NewEquity(symbol string) Instrument {
	return Instrument{Symbol: NormalizeSymbol(symbol), Kind: KindEquity}
}

// NormalizeSymbol uppercases and trims an instrument identifier
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote is a single price/change reading for one instrument at one point in time.
// Quotes are built once per fetch cycle and superseded, never mutated.
type Quote struct {
	Symbol           string           `json:"symbol"`
	Kind             InstrumentKind   `json:"kind"`
	Name             string           `json:"name,omitempty"`
	Price            decimal.Decimal  `json:"price"`
	Change           decimal.Decimal  `json:"change"`
	ChangePercent    string           `json:"change_percent"`
	Exchange         string           `json:"exchange,omitempty"`
	CapturedAt       time.Time        `json:"timestamp"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
}

// UnavailableQuote builds the zeroed quote returned when nothing could be extracted
func UnavailableQuote(instrument Instrument, capturedAt time.Time) Quote {
	quote := Quote{
		Symbol:           instrument.Symbol,
		Kind:             instrument.Kind,
		Name:             instrument.Name,
		Price:            decimal.Zero,
		Change:           decimal.Zero,
		ChangePercent:    ZeroPercent,
		CapturedAt:       capturedAt,
		ExtractionMethod: MethodUnavailable,
	}
	if instrument.Kind == KindEquity {
		quote.Exchange = DefaultExchange
	}
	return quote
}

// IsAvailable reports whether any heuristic produced data for the quote
func (q Quote) IsAvailable() bool {
	return q.ExtractionMethod != MethodUnavailable && q.ExtractionMethod != ""
}

// ChangePercentValue parses the textual percent back into a decimal; invalid text yields zero
func (q Quote) ChangePercentValue() decimal.Decimal {
	text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(q.ChangePercent), "%"))
	text = strings.TrimPrefix(text, "+")
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// FormatPercent renders a percent with an explicit sign and two decimals, e.g. "+1.54%"
func FormatPercent(value decimal.Decimal) string {
	if value.IsNegative() {
		return value.StringFixed(2) + "%"
	}
	return "+" + value.StringFixed(2) + "%"
}
