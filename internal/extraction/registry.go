package extraction

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed extractor is excluded from the chain.
const DefaultCooldown = 5 * time.Minute

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config identifies which extractors a deployment enables. The baseline
// Ollama extractor is always registered; the cloud extractors are registered
// only when their credentials are present.
type Config struct {
	GeminiAPIKey string
	GeminiModel  string

	VisionEndpoint string
	VisionAPIKey   string

	OllamaURL   string
	OllamaModel string

	// Cooldown overrides DefaultCooldown when positive.
	Cooldown time.Duration
}

// ExtractorStatus describes one registered extractor for operability
// endpoints.
type ExtractorStatus struct {
	Name        string     `json:"name"`
	Priority    int        `json:"priority"`
	Available   bool       `json:"available"`
	CoolingDown *time.Time `json:"cooling_down_until,omitempty"`
}

type entry struct {
	extractor    Extractor
	priority     int
	coolingUntil time.Time
}

// Registry holds extractors in priority order and tracks per-extractor
// availability. A failed extractor cools down for a fixed window; availability
// is recomputed lazily against the clock on every read, so no background
// ticking is needed.
type Registry struct {
	mu         sync.Mutex
	entries    []*entry
	cooldown   time.Duration
	timeSource TimeSource
}

// NewRegistry creates an empty registry with the default clock.
func NewRegistry(cooldown time.Duration) *Registry {
	return NewRegistryWithDeps(cooldown, &defaultTimeSource{})
}

// NewRegistryWithDeps creates an empty registry with a custom time source for
// testing.
func NewRegistryWithDeps(cooldown time.Duration, timeSource TimeSource) *Registry {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Registry{
		cooldown:   cooldown,
		timeSource: timeSource,
	}
}

// BuildRegistry constructs the extractor chain from deployment configuration.
// Lower priority numbers are tried first.
func BuildRegistry(cfg Config) (*Registry, error) {
	r := NewRegistry(cfg.Cooldown)

	if cfg.GeminiAPIKey != "" {
		gemini, err := NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("building gemini extractor: %w", err)
		}
		r.Register(gemini, 1)
	}

	if cfg.VisionEndpoint != "" && cfg.VisionAPIKey != "" {
		vision, err := NewVisionHTTP(cfg.VisionEndpoint, cfg.VisionAPIKey)
		if err != nil {
			return nil, fmt.Errorf("building vision extractor: %w", err)
		}
		r.Register(vision, 2)
	}

	// Baseline: no credentials required, always present so the chain is never
	// empty.
	r.Register(NewOllama(cfg.OllamaURL, cfg.OllamaModel), 3)

	return r, nil
}

// Register adds an extractor at the given priority.
func (r *Registry) Register(ext Extractor, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, &entry{extractor: ext, priority: priority})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority < r.entries[j].priority
	})
}

// Available returns the extractors currently usable, in ascending priority
// order. Extractors whose cool-down window has elapsed are included again
// without any explicit reset.
func (r *Registry) Available() []Extractor {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeSource.Now()
	available := make([]Extractor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.coolingUntil.After(now) {
			continue
		}
		available = append(available, e.extractor)
	}
	return available
}

// MarkFailed puts the named extractor into cool-down.
func (r *Registry) MarkFailed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeSource.Now()
	for _, e := range r.entries {
		if e.extractor.Name() == name {
			e.coolingUntil = now.Add(r.cooldown)
			slog.Warn("Extractor cooling down", "extractor", name, "until", e.coolingUntil)
			return
		}
	}
}

// IsAvailable reports whether the named extractor is registered and not
// cooling down.
func (r *Registry) IsAvailable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeSource.Now()
	for _, e := range r.entries {
		if e.extractor.Name() == name {
			return !e.coolingUntil.After(now)
		}
	}
	return false
}

// Status reports every registered extractor, available or not.
func (r *Registry) Status() []ExtractorStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeSource.Now()
	statuses := make([]ExtractorStatus, 0, len(r.entries))
	for _, e := range r.entries {
		s := ExtractorStatus{
			Name:      e.extractor.Name(),
			Priority:  e.priority,
			Available: !e.coolingUntil.After(now),
		}
		if !s.Available {
			until := e.coolingUntil
			s.CoolingDown = &until
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// Close closes every registered extractor.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, e := range r.entries {
		if err := e.extractor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
