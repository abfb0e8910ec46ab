package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/receipt"
)

// A hanging back-end would stall every queued scan behind it, so the queue is
// bounded and both the per-extractor call and the whole scan run under
// deadlines.
const (
	DefaultQueueSize           = 64
	DefaultExtractorTimeout    = 45 * time.Second
	DefaultScanTimeout         = 3 * time.Minute
	DefaultConfidenceThreshold = 85
)

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config tunes the pipeline. Zero values fall back to the defaults.
type Config struct {
	QueueSize           int
	CacheEntries        int
	CacheTTL            time.Duration
	ExtractorTimeout    time.Duration
	ScanTimeout         time.Duration
	ConfidenceThreshold int
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ExtractorTimeout <= 0 {
		c.ExtractorTimeout = DefaultExtractorTimeout
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = DefaultScanTimeout
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return c
}

type scanOutcome struct {
	record *receipt.Record
	err    error
}

type scanJob struct {
	id        string
	imagePath string
	cacheKey  string
	// result is buffered so the worker never blocks on a caller that stopped
	// waiting.
	result chan scanOutcome
}

// Service orchestrates the receipt digitization pipeline: cache lookup,
// queueing, quality scoring, ranked extractor fallback, parsing, and
// persistence. A single worker goroutine drains the queue strictly FIFO, so
// at most one extractor chain is in flight at a time regardless of how many
// callers submit concurrently.
type Service struct {
	registry *extraction.Registry
	parser   *receipt.Parser
	cache    *Cache
	store    Store
	cfg      Config

	jobs chan *scanJob
	done chan struct{}
}

// NewService creates a Service. Call Start before submitting scans.
func NewService(registry *extraction.Registry, store Store, cfg Config) *Service {
	return NewServiceWithDeps(registry, receipt.NewParser(), store, cfg)
}

// NewServiceWithDeps creates a Service with a custom parser for testing.
func NewServiceWithDeps(registry *extraction.Registry, parser *receipt.Parser, store Store, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		registry: registry,
		parser:   parser,
		cache:    NewCache(cfg.CacheEntries, cfg.CacheTTL),
		store:    store,
		cfg:      cfg,
		jobs:     make(chan *scanJob, cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the single queue worker.
func (s *Service) Start() {
	go s.run()
}

// Stop stops the queue worker. In-flight work finishes first; queued jobs are
// abandoned.
func (s *Service) Stop() {
	close(s.done)
}

// Scan digitizes the image at the given path into a structured receipt
// record. Identical images (by size + modification time) are answered from
// cache without touching the extractor chain. Returns ErrQueueFull when the
// queue is saturated, an InvalidImageError when the path is unreadable, and
// ErrAllExtractorsFailed when no back-end produced a usable result.
func (s *Service) Scan(ctx context.Context, imagePath string) (*receipt.Record, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, &InvalidImageError{Path: imagePath, Err: err}
	}

	key := cacheKey(info.Size(), info.ModTime())
	if record, ok := s.cache.Get(key); ok {
		slog.Info("Cache hit", "path", imagePath, "key", key)
		return record, nil
	}

	job := &scanJob{
		id:        uuid.NewString(),
		imagePath: imagePath,
		cacheKey:  key,
		result:    make(chan scanOutcome, 1),
	}

	select {
	case s.jobs <- job:
	default:
		return nil, fmt.Errorf("enqueueing scan of %s: %w", imagePath, ErrQueueFull)
	}

	select {
	case outcome := <-job.result:
		return outcome.record, outcome.err
	case <-ctx.Done():
		// The job is not cancellable; it will still run and populate the
		// cache for a retry.
		return nil, ctx.Err()
	}
}

// Records returns everything in the offline store, newest first.
func (s *Service) Records() ([]*receipt.Record, error) {
	return s.store.List()
}

// ClearCache empties the in-memory cache. When prefix is non-empty, matching
// offline store keys are cleared as well.
func (s *Service) ClearCache(prefix string) error {
	s.cache.Clear()
	if prefix == "" {
		return nil
	}
	if err := s.store.ClearPrefix(prefix); err != nil {
		return fmt.Errorf("clearing store prefix %q: %w", prefix, err)
	}
	return nil
}

// Extractors reports the registry status for operability endpoints.
func (s *Service) Extractors() []extraction.ExtractorStatus {
	return s.registry.Status()
}

// run is the single worker loop. Each job completes its entire extractor
// fallback sequence before the next one starts.
func (s *Service) run() {
	for {
		select {
		case job := <-s.jobs:
			record, err := s.process(job)
			job.result <- scanOutcome{record: record, err: err}
		case <-s.done:
			return
		}
	}
}

// process runs one orchestrated scan end to end.
func (s *Service) process(job *scanJob) (*receipt.Record, error) {
	// A duplicate submitted while this job sat in the queue may already have
	// resolved the same identity.
	if record, ok := s.cache.Get(job.cacheKey); ok {
		return record, nil
	}

	data, err := os.ReadFile(job.imagePath)
	if err != nil {
		return nil, &InvalidImageError{Path: job.imagePath, Err: err}
	}

	start := time.Now()
	qualityScore := extraction.Quality(int64(len(data)))
	contentType := contentTypeForPath(job.imagePath)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ScanTimeout)
	defer cancel()

	var best *receipt.Record
	for _, ext := range s.registry.Available() {
		if ctx.Err() != nil {
			slog.Warn("Scan deadline reached", "job", job.id, "path", job.imagePath)
			break
		}

		extCtx, extCancel := context.WithTimeout(ctx, s.cfg.ExtractorTimeout)
		result, err := ext.Extract(extCtx, data, contentType)
		extCancel()
		if err != nil {
			slog.Error("Extractor failed",
				"job", job.id,
				"extractor", ext.Name(),
				"path", job.imagePath,
				"error", err,
			)
			s.registry.MarkFailed(ext.Name())
			continue
		}

		record := s.parser.Parse(result.Text, result.Confidence, ext.Name())
		if best == nil || record.Confidence > best.Confidence {
			best = record
		}
		if record.Confidence > s.cfg.ConfidenceThreshold {
			// Good enough; skip the slower or costlier back-ends.
			break
		}
	}

	if best == nil {
		return nil, fmt.Errorf("scanning %s: %w", job.imagePath, ErrAllExtractorsFailed)
	}

	best.ImageQualityScore = qualityScore
	best.ProcessingTimeMs = time.Since(start).Milliseconds()

	if err := s.store.Put(job.cacheKey, best); err != nil {
		return nil, fmt.Errorf("persisting record: %w", err)
	}
	s.cache.Put(job.cacheKey, best)

	slog.Info("Scan complete",
		"job", job.id,
		"extractor", best.ExtractorName,
		"merchant", best.MerchantName,
		"confidence", best.Confidence,
		"elapsed_ms", best.ProcessingTimeMs,
	)
	return best, nil
}

// cacheKey builds the image identity from size and modification time. This is
// a cheap proxy, not a content hash: it can alias two images of identical
// size and mtime, and the worst outcome of that is a stale cached parse.
func cacheKey(size int64, modTime time.Time) string {
	return fmt.Sprintf("%d-%d", size, modTime.UnixNano())
}

// contentTypeForPath maps a file extension to the MIME type handed to the
// extractors. Unknown extensions are passed as a generic type; the image
// normalizer sniffs magic bytes for the formats that matter.
func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
