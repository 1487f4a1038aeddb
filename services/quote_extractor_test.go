package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedCaptureTime = time.Date(2025, 3, 14, 9, 45, 0, 0, time.UTC)

func newTestExtractor() *QuoteExtractor {
	return NewQuoteExtractorWithClock(func() time.Time { return fixedCaptureTime })
}

func page(body string) string {
	return "<html><head><title>Quote</title></head><body>" + body + "</body></html>"
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func TestExtractHeuristics(t *testing.T) {
	testCases := []struct {
		name          string
		html          string
		price         string
		change        string
		changePercent string
		method        models.ExtractionMethod
	}{
		{
			name: "single element with change and percent",
			html: page(`<div data-last-price="2980.5"><div class="YMlKec fxKbKc">₹2,980.50</div></div>
				<div class="JwB6zf"><span>+45.20 (+1.54%)</span></div>`),
			price:         "2980.50",
			change:        "45.20",
			changePercent: "+1.54%",
			method:        models.MethodDirectParse,
		},
		{
			name: "change and percent split across child spans",
			html: page(`<div class="YMlKec fxKbKc">₹1,407.00</div>
				<div class="quote-change"><span>-12.30</span> <span>(-0.87%)</span></div>`),
			price:         "1407.00",
			change:        "-12.30",
			changePercent: "-0.87%",
			method:        models.MethodDirectParse,
		},
		{
			name:          "unicode minus sign",
			html:          page(`<div class="YMlKec fxKbKc">₹640.10</div><div>−4.05 (−0.63%)</div>`),
			price:         "640.10",
			change:        "-4.05",
			changePercent: "-0.63%",
			method:        models.MethodDirectParse,
		},
		{
			name:          "wrapper holding price and unsigned change",
			html:          page(`<div class="quote"><div class="YMlKec fxKbKc">₹2,980.50</div><div>45.20 (1.54%)</div></div>`),
			price:         "2980.50",
			change:        "45.20",
			changePercent: "+1.54%",
			method:        models.MethodDirectParse,
		},
		{
			name:          "flat session keeps a signed zero percent",
			html:          page(`<div class="YMlKec fxKbKc">₹742.15</div><div class="JwB6zf">+0.00 (+0.00%)</div>`),
			price:         "742.15",
			change:        "0",
			changePercent: "+0.00%",
			method:        models.MethodDirectParse,
		},
		{
			name: "candidate list with numeric change before percent",
			html: page(`<div class="YMlKec fxKbKc">₹512.40</div>
				<div><span class="P2Luy">-3.10</span><span class="JwB6zf">0.60%</span></div>`),
			price:         "512.40",
			change:        "-3.10",
			changePercent: "-0.60%",
			method:        models.MethodCandidateListFallback,
		},
		{
			name: "candidate list restores a detached minus sign",
			html: page(`<div class="YMlKec fxKbKc">₹512.40</div>
				<div><span class="P2Luy">3.10</span><span class="JwB6zf">- 0.60%</span></div>`),
			price:         "512.40",
			change:        "-3.10",
			changePercent: "-0.60%",
			method:        models.MethodCandidateListFallback,
		},
		{
			name:          "candidate list reads change from the percent fragment",
			html:          page(`<div class="YMlKec fxKbKc">₹1,932.75</div><p class="enJeMd">+8.15 (+0.42%)</p>`),
			price:         "1932.75",
			change:        "8.15",
			changePercent: "+0.42%",
			method:        models.MethodCandidateListFallback,
		},
		{
			name:          "candidate list without a change value",
			html:          page(`<div class="YMlKec fxKbKc">₹88.20</div><p class="NydbP">+2.10%</p>`),
			price:         "88.20",
			change:        "0",
			changePercent: "+2.10%",
			method:        models.MethodCandidateListFallback,
		},
		{
			name: "previous close derives change and percent",
			html: page(`<div class="YMlKec fxKbKc">₹1,407.00</div>
				<div class="gyFHrc"><span class="mfs7Fc">Previous close</span><div class="P6K39c">₹1,390.00</div></div>`),
			price:         "1407.00",
			change:        "17.00",
			changePercent: "+1.22%",
			method:        models.MethodPreviousCloseFallback,
		},
		{
			name: "previous close below price gives negative change",
			html: page(`<div class="YMlKec fxKbKc">₹95.00</div>
				<table><tr><td>Previous Close</td><td>₹100.00</td></tr></table>`),
			price:         "95.00",
			change:        "-5.00",
			changePercent: "-5.00%",
			method:        models.MethodPreviousCloseFallback,
		},
		{
			name: "price equal to previous close",
			html: page(`<div class="YMlKec fxKbKc">₹1,390.00</div>
				<div class="gyFHrc"><span class="mfs7Fc">Previous close</span><div class="P6K39c">₹1,390.00</div></div>`),
			price:         "1390.00",
			change:        "0",
			changePercent: "+0.00%",
			method:        models.MethodPreviousCloseFallback,
		},
		{
			name:          "contradicting explicit signs are discarded",
			html:          page(`<div class="YMlKec fxKbKc">100.00</div><div>+2.00 (-1.00%)</div>`),
			price:         "100.00",
			change:        "0",
			changePercent: "0%",
			method:        models.MethodDirectParse,
		},
	}

	extractor := newTestExtractor()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			quote := extractor.Extract(tc.html, models.NewEquity("reliance"))

			require.Equal(t, tc.method, quote.ExtractionMethod)
			requireDecimal(t, tc.price, quote.Price)
			requireDecimal(t, tc.change, quote.Change)
			require.Equal(t, tc.changePercent, quote.ChangePercent)
			require.Equal(t, "RELIANCE", quote.Symbol)
			require.Equal(t, models.DefaultExchange, quote.Exchange)
			require.Equal(t, fixedCaptureTime, quote.CapturedAt)
		})
	}
}

func TestExtractUnavailable(t *testing.T) {
	testCases := []struct {
		name string
		html string
	}{
		{name: "empty document", html: ""},
		{name: "no numeric data", html: page(`<p>Quote temporarily unavailable</p>`)},
		{name: "price without change data", html: page(`<div class="YMlKec fxKbKc">₹2,980.50</div>`)},
		{name: "change without price", html: page(`<div><span>+1.00 (+0.10%)</span></div>`)},
		{name: "unparseable price", html: page(`<div class="YMlKec fxKbKc">N/A</div><div>+1.00 (+0.10%)</div>`)},
	}

	extractor := newTestExtractor()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			quote := extractor.Extract(tc.html, models.NewEquity("TCS"))

			require.Equal(t, models.MethodUnavailable, quote.ExtractionMethod)
			require.True(t, quote.Price.IsZero())
			require.True(t, quote.Change.IsZero())
			require.Equal(t, models.ZeroPercent, quote.ChangePercent)
			require.False(t, quote.IsAvailable())
		})
	}
}

func TestExtractIndexQuote(t *testing.T) {
	instrument, err := LookupIndex("nifty50")
	require.NoError(t, err)

	html := page(`<div class="YMlKec fxKbKc">24,310.45</div><div class="JwB6zf">+112.30 (+0.46%)</div>`)
	quote := newTestExtractor().Extract(html, instrument)

	require.Equal(t, models.KindIndex, quote.Kind)
	require.Equal(t, "NIFTY50", quote.Symbol)
	require.Equal(t, "NIFTY 50", quote.Name)
	require.Empty(t, quote.Exchange)
	requireDecimal(t, "24310.45", quote.Price)
	require.Equal(t, "+0.46%", quote.ChangePercent)
}

func TestDirectParseWinsOverPreviousClose(t *testing.T) {
	html := page(`<div class="YMlKec fxKbKc">₹1,407.00</div>
		<div>+20.00 (+1.44%)</div>
		<div class="gyFHrc"><span>Previous close</span><div class="P6K39c">₹1,390.00</div></div>`)

	quote := newTestExtractor().Extract(html, models.NewEquity("INFY"))

	require.Equal(t, models.MethodDirectParse, quote.ExtractionMethod)
	requireDecimal(t, "20.00", quote.Change)
}

func TestParseNumericText(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
		ok       bool
	}{
		{input: "₹2,980.50", expected: "2980.50", ok: true},
		{input: "$1,234", expected: "1234", ok: true},
		{input: "Rs. 1,000.5", expected: "1000.5", ok: true},
		{input: " 24,310.45 ", expected: "24310.45", ok: true},
		{input: "12.5 cr", expected: "12.5", ok: true},
		{input: "N/A", expected: "0", ok: false},
		{input: "", expected: "0", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			value, ok := parseNumericText(tc.input)
			require.Equal(t, tc.ok, ok)
			requireDecimal(t, tc.expected, value)
		})
	}
}

func TestReconcileSigns(t *testing.T) {
	signed := func(value string, explicit bool) signedNumber {
		return signedNumber{value: decimal.RequireFromString(value), explicit: explicit}
	}

	change, percent, consistent := reconcileSigns(signed("3.10", false), signed("-0.60", true))
	require.True(t, consistent)
	requireDecimal(t, "-3.10", change)
	requireDecimal(t, "-0.60", percent)

	change, percent, consistent = reconcileSigns(signed("-3.10", true), signed("0.60", false))
	require.True(t, consistent)
	requireDecimal(t, "-3.10", change)
	requireDecimal(t, "-0.60", percent)

	change, percent, consistent = reconcileSigns(signed("3.10", true), signed("-0.60", true))
	require.False(t, consistent)
	require.True(t, change.IsZero())
	require.True(t, percent.IsZero())

	change, percent, consistent = reconcileSigns(signed("0", false), signed("1.20", true))
	require.True(t, consistent)
	require.True(t, change.IsZero())
	requireDecimal(t, "1.20", percent)
}

func signedCents(cents int64, negative bool) decimal.Decimal {
	value := decimal.New(cents, -2)
	if negative {
		return value.Neg()
	}
	return value
}

func signedText(value decimal.Decimal) string {
	if value.IsNegative() {
		return value.StringFixed(2)
	}
	return "+" + value.StringFixed(2)
}

func TestExtractDirectParseProperties(t *testing.T) {
	extractor := newTestExtractor()
	properties := gopter.NewProperties(nil)

	properties.Property("direct change text round-trips into the quote", prop.ForAll(
		func(priceCents, changeCents, percentBasisPoints int64, negative bool) bool {
			price := decimal.New(priceCents, -2)
			change := signedCents(changeCents, negative)
			percent := signedCents(percentBasisPoints, negative)

			html := page(fmt.Sprintf(`<div class="YMlKec fxKbKc">₹%s</div><div class="JwB6zf"><span>%s (%s%%)</span></div>`,
				price.StringFixed(2), signedText(change), signedText(percent)))
			quote := extractor.Extract(html, models.NewEquity("SBIN"))

			return quote.ExtractionMethod == models.MethodDirectParse &&
				quote.Price.Equal(price) &&
				quote.Change.Equal(change) &&
				quote.ChangePercent == models.FormatPercent(percent)
		},
		gen.Int64Range(1, 5000000),
		gen.Int64Range(1, 100000),
		gen.Int64Range(1, 2000),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestExtractInvariantProperties(t *testing.T) {
	extractor := newTestExtractor()
	properties := gopter.NewProperties(nil)

	fragments := []string{
		`<div class="YMlKec fxKbKc">₹1,250.00</div>`,
		`<div data-last-price="-5">x</div>`,
		`<div>+3.00 (-0.20%)</div>`,
		`<span class="P2Luy">-7.25</span>`,
		`<span class="JwB6zf">1.10%</span>`,
		`<span class="NydbP">- 0.35%</span>`,
		`<span>Previous close</span><div class="P6K39c">₹1,200.00</div>`,
		`<p>market closed</p>`,
		`<div>(+0.5%)</div>`,
	}

	properties.Property("extracted quotes never violate price or sign invariants", prop.ForAll(
		func(picks []int) bool {
			parts := make([]string, len(picks))
			for i, pick := range picks {
				parts[i] = fragments[pick]
			}
			quote := extractor.Extract(page(strings.Join(parts, "")), models.NewEquity("ITC"))

			if quote.Price.IsNegative() {
				return false
			}
			if quote.ExtractionMethod == models.MethodUnavailable {
				return quote.Price.IsZero() && quote.Change.IsZero() && quote.ChangePercent == models.ZeroPercent
			}
			percent := quote.ChangePercentValue()
			if !quote.Change.IsZero() && !percent.IsZero() && quote.Change.Sign() != percent.Sign() {
				return false
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(fragments)-1)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
