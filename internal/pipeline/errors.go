package pipeline

import (
	"errors"
	"fmt"
)

// ErrAllExtractorsFailed is returned when every available extractor errored
// or produced no usable result. Callers should treat it as "retake the
// photo".
var ErrAllExtractorsFailed = errors.New("all extractors failed")

// ErrQueueFull is returned when the processing queue rejects new work under
// sustained load. The scan was never started.
var ErrQueueFull = errors.New("processing queue is full")

// InvalidImageError means the image reference was missing or unreadable. The
// scan fails fast, before any extractor is attempted.
type InvalidImageError struct {
	Path string
	Err  error
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid image %s: %v", e.Path, e.Err)
}

func (e *InvalidImageError) Unwrap() error {
	return e.Err
}
