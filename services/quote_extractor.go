package services

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/market-quotes/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Markup hooks of the upstream quote page
const (
	lastPriceAttributeSelector = "[data-last-price]"
	bigPriceSelector           = ".YMlKec.fxKbKc"
	changeCandidateSelector    = ".JwB6zf, .P2Luy, .NydbP, .enJeMd, .Ez2Ioe"
	combinedScanSelector       = "span, div"
	previousCloseLabelSelector = "span, div, td, th, dt"
	previousCloseValueSelector = ".P6K39c"
	previousCloseLabelText     = "previous close"
)

// Length bounds keep whole-page containers out of the text scans
const (
	maxCombinedTextLength  = 60
	maxCandidateTextLength = 100
	maxPercentTextLength   = 50
	maxLabelTextLength     = 40
)

var (
	combinedChangePattern   = regexp.MustCompile(`([+\-]?\d[\d,]*(?:\.\d+)?)\s*\(\s*([+\-]?\d[\d,]*(?:\.\d+)?)\s*%\s*\)`)
	leadingChangePattern    = regexp.MustCompile(`^\s*([+\-]?\d[\d,]*(?:\.\d+)?)\s*\(\s*([+\-]?\d[\d,]*(?:\.\d+)?)\s*%\s*\)`)
	parenthesizedPercent    = regexp.MustCompile(`\(\s*([+\-]?\d[\d,]*(?:\.\d+)?)\s*%\s*\)`)
	barePercent             = regexp.MustCompile(`([+\-]?\d[\d,]*(?:\.\d+)?)\s*%`)
	leadingNumber           = regexp.MustCompile(`^[+\-]?\d+(?:\.\d+)?`)
	pureNumber              = regexp.MustCompile(`^[+\-]?\d+(?:\.\d+)?$`)
	whitespaceRun           = regexp.MustCompile(`\s+`)
	currencyTokenReplacer   = strings.NewReplacer("₹", "", "$", "", "€", "", "£", "", "Rs.", "", "Rs", "", "INR", "", ",", "")
	minusSignNormalizer     = strings.NewReplacer("\u2212", "-", "\u2013", "-")
	hundred                 = decimal.NewFromInt(100)
	percentDisplayPrecision = int32(2)
)

// signedNumber is a parsed value plus whether its sign was written in the source text
type signedNumber struct {
	value    decimal.Decimal
	explicit bool
}

// changeMatch is the change/percent pair recovered by one heuristic
type changeMatch struct {
	change  signedNumber
	percent signedNumber
	method  models.ExtractionMethod
}

// QuoteExtractor turns a quote page into a Quote. It performs no I/O and never fails:
// pages without usable data produce an Unavailable quote.
type QuoteExtractor struct {
	now func() time.Time
}

// NewQuoteExtractor creates an extractor stamping quotes with the current time
func NewQuoteExtractor() *QuoteExtractor {
	return &QuoteExtractor{now: time.Now}
}

// NewQuoteExtractorWithClock creates an extractor with a fixed clock, used by tests and replays
func NewQuoteExtractorWithClock(now func() time.Time) *QuoteExtractor {
	return &QuoteExtractor{now: now}
}

// Extract parses raw HTML and applies the extraction heuristics in priority order
func (extractor *QuoteExtractor) Extract(html string, instrument models.Instrument) models.Quote {
	document, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "QuoteExtractor",
			"symbol":    instrument.Symbol,
		}).WithError(err).Warn("Failed to parse quote page")
		return models.UnavailableQuote(instrument, extractor.capturedAt())
	}
	return extractor.ExtractDocument(document, instrument)
}

// ExtractDocument applies the heuristics to an already parsed document
func (extractor *QuoteExtractor) ExtractDocument(document *goquery.Document, instrument models.Instrument) models.Quote {
	capturedAt := extractor.capturedAt()
	price, hasPrice := locatePrice(document)

	var match changeMatch
	var hasChange bool
	if match, hasChange = findDirectChange(document); !hasChange {
		if match, hasChange = findCandidateListChange(document); !hasChange && hasPrice {
			match, hasChange = derivePreviousCloseChange(document, price)
		}
	}

	if !hasPrice || !hasChange {
		return models.UnavailableQuote(instrument, capturedAt)
	}

	change, percent, consistent := reconcileSigns(match.change, match.percent)
	quote := models.UnavailableQuote(instrument, capturedAt)
	quote.Price = price
	quote.Change = change
	if consistent {
		quote.ChangePercent = models.FormatPercent(percent)
	}
	quote.ExtractionMethod = match.method

	logrus.WithFields(logrus.Fields{
		"component":         "QuoteExtractor",
		"symbol":            quote.Symbol,
		"price":             quote.Price.String(),
		"change":            quote.Change.String(),
		"change_percent":    quote.ChangePercent,
		"extraction_method": quote.ExtractionMethod,
	}).Debug("Extracted quote")

	return quote
}

func (extractor *QuoteExtractor) capturedAt() time.Time {
	return extractor.now().UTC()
}

// locatePrice reads the last-price attribute, falling back to the big price element
func locatePrice(document *goquery.Document) (decimal.Decimal, bool) {
	if attr, ok := document.Find(lastPriceAttributeSelector).First().Attr("data-last-price"); ok {
		if price, parsed := parseNumericText(attr); parsed && !price.IsNegative() {
			return price, true
		}
	}

	priceText := document.Find(bigPriceSelector).First().Text()
	if price, parsed := parseNumericText(priceText); parsed && !price.IsNegative() {
		return price, true
	}

	return decimal.Zero, false
}

// findDirectChange scans short elements whose text starts with "SIGNED_NUMBER (SIGNED_PERCENT%)".
// This covers both a single element holding the whole text and a parent whose
// child spans read that way once joined. A wrapper that also holds the price
// joins it in front of the change and must not match.
func findDirectChange(document *goquery.Document) (changeMatch, bool) {
	var match changeMatch
	found := false

	document.Find(combinedScanSelector).EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		text := normalizeText(selection.Text())
		if text == "" || utf8.RuneCountInString(text) > maxCombinedTextLength {
			return true
		}

		change, percent, ok := parseCombinedChange(leadingChangePattern, text)
		if !ok {
			return true
		}

		match = changeMatch{change: change, percent: percent, method: models.MethodDirectParse}
		found = true
		return false
	})

	return match, found
}

// findCandidateListChange handles markup that splits the change and percent across
// several small elements carrying the change style classes
func findCandidateListChange(document *goquery.Document) (changeMatch, bool) {
	var fragments []string
	document.Find(changeCandidateSelector).Each(func(_ int, selection *goquery.Selection) {
		text := normalizeText(selection.Text())
		if text == "" || utf8.RuneCountInString(text) > maxCandidateTextLength {
			return
		}
		fragments = append(fragments, text)
	})

	percentIndex := -1
	for i, fragment := range fragments {
		if strings.Contains(fragment, "%") && utf8.RuneCountInString(fragment) < maxPercentTextLength {
			percentIndex = i
			break
		}
	}
	if percentIndex < 0 {
		return changeMatch{}, false
	}

	percentFragment := fragments[percentIndex]
	percent, ok := parsePercentFragment(percentFragment)
	if !ok {
		return changeMatch{}, false
	}

	match := changeMatch{percent: percent, method: models.MethodCandidateListFallback}

	if percentIndex > 0 {
		previous := fragments[percentIndex-1]
		if !strings.Contains(previous, "%") {
			if change, isNumeric := parsePureNumber(previous); isNumeric {
				match.change = change
				return match, true
			}
		}
	}

	if change, _, ok := parseCombinedChange(combinedChangePattern, percentFragment); ok {
		match.change = change
	}

	return match, true
}

// derivePreviousCloseChange computes change and percent from the "Previous close" row
func derivePreviousCloseChange(document *goquery.Document, price decimal.Decimal) (changeMatch, bool) {
	if !price.IsPositive() {
		return changeMatch{}, false
	}

	previousClose, ok := locatePreviousClose(document)
	if !ok || !previousClose.IsPositive() {
		return changeMatch{}, false
	}

	change := price.Sub(previousClose).Round(2)
	percent := change.Div(previousClose).Mul(hundred).Round(percentDisplayPrecision)

	return changeMatch{
		change:  signedNumber{value: change, explicit: true},
		percent: signedNumber{value: percent, explicit: true},
		method:  models.MethodPreviousCloseFallback,
	}, true
}

func locatePreviousClose(document *goquery.Document) (decimal.Decimal, bool) {
	label := document.Find(previousCloseLabelSelector).FilterFunction(func(_ int, selection *goquery.Selection) bool {
		own := strings.ToLower(ownText(selection))
		return own != "" && utf8.RuneCountInString(own) <= maxLabelTextLength && strings.Contains(own, previousCloseLabelText)
	}).First()
	if label.Length() == 0 {
		return decimal.Zero, false
	}

	candidates := []*goquery.Selection{
		label.Next(),
		label.NextAll().Filter(previousCloseValueSelector).First(),
		label.Parent().Next(),
		label.Parent().Find(previousCloseValueSelector).First(),
	}
	for _, candidate := range candidates {
		if candidate.Length() == 0 {
			continue
		}
		if value, ok := parseNumericText(candidate.Text()); ok {
			return value, true
		}
	}

	return decimal.Zero, false
}

// reconcileSigns makes sure change and percent never point in different directions.
// An unsigned value adopts the sign of an explicitly signed partner; two explicit
// values that disagree are discarded and reported as inconsistent.
func reconcileSigns(change, percent signedNumber) (decimal.Decimal, decimal.Decimal, bool) {
	if change.value.IsZero() || percent.value.IsZero() {
		return change.value, percent.value, true
	}
	if change.value.Sign() == percent.value.Sign() {
		return change.value, percent.value, true
	}

	switch {
	case change.explicit && !percent.explicit:
		return change.value, percent.value.Neg(), true
	case percent.explicit && !change.explicit:
		return change.value.Neg(), percent.value, true
	default:
		return decimal.Zero, decimal.Zero, false
	}
}

func parseCombinedChange(pattern *regexp.Regexp, text string) (signedNumber, signedNumber, bool) {
	groups := pattern.FindStringSubmatch(minusSignNormalizer.Replace(text))
	if len(groups) < 3 {
		return signedNumber{}, signedNumber{}, false
	}

	change, ok := parseSignedNumber(groups[1])
	if !ok {
		return signedNumber{}, signedNumber{}, false
	}
	percent, ok := parseSignedNumber(groups[2])
	if !ok {
		return signedNumber{}, signedNumber{}, false
	}
	return change, percent, true
}

// parsePercentFragment prefers "(X%)" over "X%". When the fragment contains a literal
// minus but the parsed value came out positive, the sign was lost and is restored.
func parsePercentFragment(text string) (signedNumber, bool) {
	normalized := minusSignNormalizer.Replace(text)

	groups := parenthesizedPercent.FindStringSubmatch(normalized)
	if len(groups) < 2 {
		groups = barePercent.FindStringSubmatch(normalized)
	}
	if len(groups) < 2 {
		return signedNumber{}, false
	}

	percent, ok := parseSignedNumber(groups[1])
	if !ok {
		return signedNumber{}, false
	}

	if strings.Contains(normalized, "-") && percent.value.IsPositive() {
		percent.value = percent.value.Neg()
		percent.explicit = true
	}
	return percent, true
}

func parseSignedNumber(text string) (signedNumber, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	value, err := decimal.NewFromString(strings.TrimPrefix(cleaned, "+"))
	if err != nil {
		return signedNumber{}, false
	}
	explicit := strings.HasPrefix(cleaned, "+") || strings.HasPrefix(cleaned, "-")
	return signedNumber{value: value, explicit: explicit}, true
}

func parsePureNumber(text string) (signedNumber, bool) {
	cleaned := cleanCurrencyText(text)
	if !pureNumber.MatchString(cleaned) {
		return signedNumber{}, false
	}
	return parseSignedNumber(cleaned)
}

// parseNumericText strips currency symbols and thousands separators and parses the
// leading number. Anything unparseable reports false and a zero value.
func parseNumericText(text string) (decimal.Decimal, bool) {
	cleaned := cleanCurrencyText(text)
	numeric := leadingNumber.FindString(cleaned)
	if numeric == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(strings.TrimPrefix(numeric, "+"))
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

func cleanCurrencyText(text string) string {
	cleaned := minusSignNormalizer.Replace(text)
	cleaned = currencyTokenReplacer.Replace(cleaned)
	return strings.Join(strings.Fields(cleaned), "")
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// ownText joins only the direct text children of the first node in the selection
func ownText(selection *goquery.Selection) string {
	var builder strings.Builder
	selection.First().Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			builder.WriteString(child.Text())
		}
	})
	return normalizeText(builder.String())
}
