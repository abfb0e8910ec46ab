package extraction

import "context"

// Result contains the raw output of a single extractor call.
type Result struct {
	// Text is the raw extracted text, unparsed.
	Text string
	// Confidence is the extractor's trust in its own output, 0-100.
	Confidence int
}

// Extractor defines the interface for text extraction back-ends.
type Extractor interface {
	// Name returns a stable identifier for this extractor.
	Name() string
	// Extract reads all visible text from an image or PDF.
	Extract(ctx context.Context, data []byte, contentType string) (Result, error)
	// Close closes the extractor and releases resources.
	Close() error
}
