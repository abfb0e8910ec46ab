package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// merchantHeaderLines is how many non-empty lines from the top are searched
// for a merchant name. Receipts print the store name in the header; scanning
// further mostly finds item names that alias merchants ("TARGET BRAND SODA").
const merchantHeaderLines = 10

var (
	dmy4Pattern      = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})\b`)
	ymdPattern       = regexp.MustCompile(`\b(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})\b`)
	dmy2Pattern      = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{2})\b`)
	monthNamePattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)

	// Substring match on purpose: "Subtotal" and "Grand Total" are both
	// label-matched candidates, and the max-selection picks the true total.
	totalLabelPattern    = regexp.MustCompile(`(?i)(total|amount|balance\s*due)`)
	moneyPattern         = regexp.MustCompile(`(\d{1,3}(?:,\d{3})*\.\d{2}|\d+\.\d{2})`)
	trailingMoneyPattern = regexp.MustCompile(`(\d{1,3}\.\d{2})\s*$`)

	itemLinePattern   = regexp.MustCompile(`^(.+?)\s+\$?(\d{1,3}\.\d{2})\s*$`)
	quantityPattern   = regexp.MustCompile(`(?i)\b(?:x\s*(\d{1,2})|(\d{1,2})\s*x)\b`)
	nonItemPattern    = regexp.MustCompile(`(?i)\b(total|subtotal|tax|change|cash|card|credit|debit|visa|mastercard|balance|tender|due)\b`)
	leadingJunk       = regexp.MustCompile(`^[^a-zA-Z]+`)
	straySymbols      = regexp.MustCompile(`[^a-zA-Z0-9\s'&-]`)
	multiSpace        = regexp.MustCompile(`\s+`)
	purelyNumericLine = regexp.MustCompile(`^[\d\s.,/#:*-]+$`)

	monthsByPrefix = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// Parser converts raw extracted text into a structured Record using
// deterministic heuristics. It never fails: every field falls back to a
// default when the text yields nothing, so even garbled OCR output produces a
// best-effort record for the user to correct.
type Parser struct {
	timeSource TimeSource
}

// NewParser creates a Parser with the default time source.
func NewParser() *Parser {
	return NewParserWithDeps(&defaultTimeSource{})
}

// NewParserWithDeps creates a Parser with a custom time source for testing.
func NewParserWithDeps(timeSource TimeSource) *Parser {
	return &Parser{timeSource: timeSource}
}

// Parse builds a Record from raw extractor output. Confidence is passed
// through from the extractor unchanged: it is the signal consumers use to
// decide whether to ask the user to verify fields.
func (p *Parser) Parse(rawText string, confidence int, extractorName string) *Record {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	lines := splitLines(rawText)
	merchant := parseMerchant(lines)

	return &Record{
		MerchantName:  merchant,
		Amount:        parseTotal(lines),
		Date:          p.parseDate(lines),
		Items:         parseItems(lines),
		Category:      resolveCategory(merchant, strings.ToLower(rawText)),
		Confidence:    confidence,
		RawText:       rawText,
		ExtractorName: extractorName,
	}
}

// splitLines returns the trimmed non-empty lines of the text.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parseMerchant scans the header lines against the merchant dictionary, then
// falls back to the first plausible header line, then to the sentinel.
func parseMerchant(lines []string) string {
	header := lines
	if len(header) > merchantHeaderLines {
		header = header[:merchantHeaderLines]
	}

	for _, line := range header {
		lowered := strings.ToLower(line)
		for _, entry := range merchantDictionary {
			for _, alias := range entry.aliases {
				if strings.Contains(lowered, alias) {
					return entry.canonical
				}
			}
		}
	}

	for _, line := range header {
		if len(line) > 3 && !purelyNumericLine.MatchString(line) {
			return strings.ToUpper(multiSpace.ReplaceAllString(line, " "))
		}
	}

	return UnknownMerchant
}

// parseDate tries the date patterns against every line, most specific format
// first, and normalizes the first structurally valid hit to ISO 8601. Falls
// back to today when nothing matches.
func (p *Parser) parseDate(lines []string) string {
	for _, line := range lines {
		if iso, ok := matchDate(line); ok {
			return iso
		}
	}
	return p.timeSource.Now().Format("2006-01-02")
}

func matchDate(line string) (string, bool) {
	if m := dmy4Pattern.FindStringSubmatch(line); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		// US receipts print MM/DD/YYYY; an impossible month means the day and
		// month positions are swapped.
		if month > 12 && day <= 12 {
			day, month = month, day
		}
		if iso, ok := isoDate(year, month, day); ok {
			return iso, true
		}
	}

	if m := ymdPattern.FindStringSubmatch(line); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if iso, ok := isoDate(year, month, day); ok {
			return iso, true
		}
	}

	if m := dmy2Pattern.FindStringSubmatch(line); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month > 12 && day <= 12 {
			day, month = month, day
		}
		// Pivot: 51-99 are 19xx, 00-50 are 20xx.
		if year > 50 {
			year += 1900
		} else {
			year += 2000
		}
		if iso, ok := isoDate(year, month, day); ok {
			return iso, true
		}
	}

	if m := monthNamePattern.FindStringSubmatch(line); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		month := monthsByPrefix[strings.ToLower(m[2])]
		if iso, ok := isoDate(year, int(month), day); ok {
			return iso, true
		}
	}

	return "", false
}

// isoDate validates a calendar date by round-tripping it through time.Date,
// which normalizes impossible dates like Feb 30 into March.
func isoDate(year, month, day int) (string, bool) {
	if year < 1900 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// parseTotal scans every line for money figures and picks the maximum
// plausible one, preferring figures on lines carrying a total/amount label.
// Receipts print subtotal, tax, and total stacked together and the true total
// is the largest of the labeled figures; the upper bound sheds OCR-garbled
// outliers. Falls back to 0.
func parseTotal(lines []string) float64 {
	var maxLabeled, maxBare float64

	for _, line := range lines {
		if totalLabelPattern.MatchString(line) {
			for _, m := range moneyPattern.FindAllString(line, -1) {
				if v, ok := parseMoney(m); ok && v > maxLabeled {
					maxLabeled = v
				}
			}
			continue
		}
		if m := trailingMoneyPattern.FindStringSubmatch(line); m != nil {
			if v, ok := parseMoney(m[1]); ok && v > maxBare {
				maxBare = v
			}
		}
	}

	if maxLabeled > 0 {
		return maxLabeled
	}
	return maxBare
}

func parseMoney(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v <= 0 || v >= MaxAmount {
		return 0, false
	}
	return v, true
}

// parseItems captures per-line name/quantity/price candidates from the
// receipt body, discarding noise and normalizing names. Caps at MaxItems.
func parseItems(lines []string) []LineItem {
	var items []LineItem

	for _, line := range lines {
		if nonItemPattern.MatchString(line) {
			continue
		}
		m := itemLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		price, err := strconv.ParseFloat(m[2], 64)
		if err != nil || price <= 0 || price >= MaxItemPrice {
			continue
		}

		namePart := m[1]
		quantity := 1
		if qm := quantityPattern.FindStringSubmatch(namePart); qm != nil {
			qs := qm[1]
			if qs == "" {
				qs = qm[2]
			}
			if q, err := strconv.Atoi(qs); err == nil && q > 0 {
				quantity = q
			}
			namePart = quantityPattern.ReplaceAllString(namePart, " ")
		}

		name := normalizeItemName(namePart)
		if len(name) <= 2 {
			continue
		}

		items = append(items, LineItem{Name: name, Quantity: quantity, Price: price})
		if len(items) == MaxItems {
			break
		}
	}

	return items
}

// normalizeItemName strips leading digits and codes, removes stray symbols,
// collapses whitespace, and uppercases.
func normalizeItemName(name string) string {
	name = leadingJunk.ReplaceAllString(name, "")
	name = straySymbols.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.ToUpper(strings.TrimSpace(name))
}

// resolveCategory maps the merchant to its category, falls back to a keyword
// scan over the full text, then to the default.
func resolveCategory(merchant, loweredText string) string {
	for _, entry := range merchantDictionary {
		if entry.canonical == merchant {
			return entry.category
		}
	}
	for _, kw := range categoryKeywords {
		if strings.Contains(loweredText, kw.keyword) {
			return kw.category
		}
	}
	return DefaultCategory
}
