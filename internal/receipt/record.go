package receipt

// UnknownMerchant is the sentinel merchant name used when nothing in the text
// resembles one. Consumers treat it as "ask the user".
const UnknownMerchant = "UNKNOWN MERCHANT"

// DefaultCategory is used when neither the merchant table nor the keyword
// scan resolves a category.
const DefaultCategory = "General"

// Bounds applied during parsing. Values outside them are treated as OCR noise
// rather than data.
const (
	// MaxAmount is the exclusive upper bound on a receipt total.
	MaxAmount = 10000
	// MaxItems caps the line items kept on a record.
	MaxItems = 20
	// MaxItemPrice is the exclusive upper bound on a single line item price.
	MaxItemPrice = 1000
)

// Record is the structured output of the pipeline, immutable once created.
// Sentinel values (UnknownMerchant, zero amount, today's date) are valid
// outputs meaning "needs user review", not failures.
type Record struct {
	MerchantName      string     `json:"merchant_name"`
	Amount            float64    `json:"amount"`
	Date              string     `json:"date"` // ISO 8601 (YYYY-MM-DD)
	Items             []LineItem `json:"items"`
	Category          string     `json:"category"`
	Confidence        int        `json:"confidence"`
	RawText           string     `json:"raw_text"`
	ProcessingTimeMs  int64      `json:"processing_time_ms"`
	ExtractorName     string     `json:"extractor_name"`
	ImageQualityScore int        `json:"image_quality_score"`
}

// LineItem is one purchased item parsed from the receipt body.
type LineItem struct {
	Name     string  `json:"name"` // normalized uppercase, never empty
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}
