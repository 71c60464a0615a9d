// Package cascade orchestrates extraction fallback across strategies.
// A Cascade walks an ordered list of (pool, breaker) pairs for each
// request: open breakers are skipped for free, an exhausted pool falls
// through to the next strategy, timeouts count as failures, and the
// first success that clears the quality gate wins.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/pool"
)

// Ensure Cascade implements the domain interfaces at compile time.
var (
	_ tidepool.Extractor     = (*Cascade)(nil)
	_ tidepool.MetricsSource = (*Cascade)(nil)
)

// Entry pairs one strategy's instance pool with its circuit breaker.
// Pools and breakers are constructed first, independently, and injected
// into the cascade afterward.
type Entry struct {
	Pool    *pool.InstancePool
	Breaker *CircuitBreaker
}

// QualityGate decides whether a successful extraction is good enough to
// short-circuit the cascade. Returning false keeps cascading.
type QualityGate func(doc *tidepool.ExtractedDoc) bool

// AcceptFirstSuccess is a QualityGate that accepts any successful result.
func AcceptFirstSuccess(*tidepool.ExtractedDoc) bool { return true }

// Escalation thresholds for the default quality gate.
const (
	minQualityScore     = 30
	minWordCount        = 50
	borderlineScore     = 50
	borderlineWordCount = 100
)

// DefaultQualityGate accepts results whose quality score and word count
// clear the escalation thresholds; borderline results (medium-low score
// with little content) keep cascading toward heavier strategies.
func DefaultQualityGate(doc *tidepool.ExtractedDoc) bool {
	if doc.QualityScore < minQualityScore {
		return false
	}
	if doc.WordCount < minWordCount {
		return false
	}
	if doc.QualityScore < borderlineScore && doc.WordCount < borderlineWordCount {
		return false
	}
	return true
}

// Attempt records the outcome of one strategy during a cascade.
type Attempt struct {
	Strategy tidepool.StrategyKind
	Skipped  bool          // skipped without an extraction attempt
	Reason   string        // why it was skipped or rejected
	Err      error         // extraction error, nil for skips and rejections
	Duration time.Duration // zero when skipped
}

// ExhaustedError is returned when every strategy in the order failed or
// was skipped. It carries the ordered per-strategy attempt record so a
// caller can distinguish a systemic outage (everything skipped on open
// breakers) from content-specific failure.
type ExhaustedError struct {
	URL      string
	Attempts []Attempt
}

// Attempted reports whether at least one strategy actually ran. False
// means every strategy was skipped (open breakers, exhausted pools): a
// systemic outage rather than a verdict on the content.
func (e *ExhaustedError) Attempted() bool {
	for _, a := range e.Attempts {
		if !a.Skipped {
			return true
		}
	}
	return false
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		switch {
		case a.Skipped:
			parts = append(parts, fmt.Sprintf("%s: skipped (%s)", a.Strategy, a.Reason))
		case a.Err != nil:
			parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", a.Strategy, a.Reason))
		}
	}
	return fmt.Sprintf("all strategies failed for %s: %s", e.URL, strings.Join(parts, "; "))
}

// Unwrap exposes the domain error code.
func (e *ExhaustedError) Unwrap() error {
	return tidepool.Errorf(tidepool.EEXHAUSTED, "all strategies failed")
}

// Cascade executes the fallback policy for extraction requests.
// Within a single request strategies run strictly sequentially; a later
// strategy never starts before the earlier one's instance is released.
//
// Cascade is safe for concurrent use.
type Cascade struct {
	entries       map[tidepool.StrategyKind]Entry
	order         []tidepool.StrategyKind
	gate          QualityGate
	preprocessors []tidepool.Preprocessor
	converter     tidepool.Converter
	recommend     bool
	logger        *slog.Logger
}

// CascadeOption configures a Cascade.
type CascadeOption func(*Cascade)

// WithQualityGate sets the acceptance predicate for successful results.
// Defaults to AcceptFirstSuccess.
func WithQualityGate(gate QualityGate) CascadeOption {
	return func(c *Cascade) { c.gate = gate }
}

// WithPreprocessors sets content preprocessors (e.g. PDF conversion)
// applied before any strategy runs.
func WithPreprocessors(pps ...tidepool.Preprocessor) CascadeOption {
	return func(c *Cascade) { c.preprocessors = append(c.preprocessors, pps...) }
}

// WithConverter sets a markdown converter applied to successful results
// that carry content HTML but no markdown.
func WithConverter(conv tidepool.Converter) CascadeOption {
	return func(c *Cascade) { c.converter = conv }
}

// WithContentAnalysis enables content-based ordering: requests without an
// explicit order get an order recommended from the page's characteristics
// instead of the registration order.
func WithContentAnalysis() CascadeOption {
	return func(c *Cascade) { c.recommend = true }
}

// WithCascadeLogger sets the cascade's logger. Defaults to slog.Default.
func WithCascadeLogger(logger *slog.Logger) CascadeOption {
	return func(c *Cascade) { c.logger = logger }
}

// New creates a Cascade over the entries. The entries' order is the
// default fallback order for requests that don't specify one.
func New(entries []Entry, opts ...CascadeOption) (*Cascade, error) {
	if len(entries) == 0 {
		return nil, tidepool.Errorf(tidepool.EINVALID, "cascade requires at least one strategy entry")
	}

	c := &Cascade{
		entries: make(map[tidepool.StrategyKind]Entry, len(entries)),
		order:   make([]tidepool.StrategyKind, 0, len(entries)),
		gate:    AcceptFirstSuccess,
		logger:  slog.Default(),
	}
	for _, e := range entries {
		if e.Pool == nil || e.Breaker == nil {
			return nil, tidepool.Errorf(tidepool.EINVALID, "cascade entry requires both a pool and a breaker")
		}
		kind := e.Pool.Strategy()
		if _, ok := c.entries[kind]; ok {
			return nil, tidepool.Errorf(tidepool.EINVALID, "duplicate cascade entry for strategy %q", kind)
		}
		c.entries[kind] = e
		c.order = append(c.order, kind)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Extract runs the request through the strategies in order and returns
// the first success that clears the quality gate. Per-attempt failures
// are contained: only total exhaustion is returned to the caller, as an
// *ExhaustedError.
func (c *Cascade) Extract(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
	if len(req.Content) == 0 && req.URL == "" {
		return nil, tidepool.Errorf(tidepool.EINVALID, "extraction request requires content or a URL")
	}

	content := req.Content
	for _, pp := range c.preprocessors {
		if !pp.Applies(content) {
			continue
		}
		processed, err := pp.Process(ctx, content)
		if err != nil {
			return nil, tidepool.Errorf(tidepool.EINVALID, "preprocessing content: %v", err)
		}
		content = processed
	}

	order := req.Order
	if len(order) == 0 {
		order = c.order
		if c.recommend {
			order = RecommendOrder(content)
		}
	}

	attempts := make([]Attempt, 0, len(order))
	for _, kind := range order {
		entry, ok := c.entries[kind]
		if !ok {
			attempts = append(attempts, Attempt{Strategy: kind, Skipped: true, Reason: "not configured"})
			continue
		}

		// An open breaker skips the strategy without touching the pool.
		if !entry.Breaker.Allow() {
			attempts = append(attempts, Attempt{Strategy: kind, Skipped: true, Reason: "circuit open"})
			continue
		}

		doc, attempt := c.attempt(ctx, kind, entry, content, req.URL)
		attempts = append(attempts, attempt)
		if doc != nil {
			return doc, nil
		}
		if err := ctx.Err(); err != nil {
			// The caller's context is gone; later strategies would only
			// fail the same way.
			return nil, err
		}
	}

	return nil, &ExhaustedError{URL: req.URL, Attempts: attempts}
}

// attempt runs one strategy: checkout, timed extraction, outcome
// bookkeeping, release. Returns a non-nil doc only on an accepted success.
func (c *Cascade) attempt(ctx context.Context, kind tidepool.StrategyKind, entry Entry, content []byte, url string) (*tidepool.ExtractedDoc, Attempt) {
	inst, err := entry.Pool.Acquire(ctx)
	if err != nil {
		if tidepool.ErrorCode(err) == tidepool.EUNAVAILABLE {
			// Pool exhaustion is not a strategy fault; fall through
			// without charging the breaker, returning any probe slot
			// Allow handed out.
			entry.Breaker.Forget()
			return nil, Attempt{Strategy: kind, Skipped: true, Reason: "pool exhausted"}
		}
		// Instance creation failed: the strategy itself is unwell.
		entry.Breaker.Record(false)
		return nil, Attempt{Strategy: kind, Err: err}
	}

	cfg := entry.Pool.Config()
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.ExtractionTimeout)
	start := time.Now()
	doc, err := inst.Extract(attemptCtx, content, url)
	duration := time.Since(start)
	timedOut := err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	cancel()

	entry.Pool.Release(inst, pool.Outcome{
		Success:  err == nil,
		Timeout:  timedOut,
		Duration: duration,
	})
	entry.Breaker.Record(err == nil)

	if err != nil {
		if timedOut {
			err = tidepool.Errorf(tidepool.ETIMEOUT, "%s extraction timed out after %s", kind, cfg.ExtractionTimeout)
		}
		c.logger.Debug("strategy attempt failed",
			"strategy", kind,
			"url", url,
			"duration", duration,
			"error", err,
		)
		return nil, Attempt{Strategy: kind, Err: err, Duration: duration}
	}

	doc.Strategy = kind
	if doc.ExtractedAt.IsZero() {
		doc.ExtractedAt = start
	}
	if c.converter != nil && doc.Markdown == "" && doc.ContentHTML != "" {
		md, cerr := c.converter.Convert(doc.ContentHTML)
		if cerr != nil {
			c.logger.Warn("markdown conversion failed", "strategy", kind, "url", url, "error", cerr)
		} else {
			doc.Markdown = md
		}
	}

	if !c.gate(doc) {
		c.logger.Debug("result rejected by quality gate",
			"strategy", kind,
			"url", url,
			"quality_score", doc.QualityScore,
			"word_count", doc.WordCount,
		)
		return nil, Attempt{Strategy: kind, Reason: "quality below threshold", Duration: duration}
	}

	return doc, Attempt{Strategy: kind, Duration: duration}
}

// PoolStatus reports instance accounting for one strategy.
func (c *Cascade) PoolStatus(kind tidepool.StrategyKind) (tidepool.PoolStatus, error) {
	entry, ok := c.entries[kind]
	if !ok {
		return tidepool.PoolStatus{}, tidepool.Errorf(tidepool.ENOTFOUND, "no pool for strategy %q", kind)
	}
	return entry.Pool.Status(), nil
}

// Snapshots returns one metrics snapshot per strategy in default order.
func (c *Cascade) Snapshots() []tidepool.PoolMetricsSnapshot {
	snaps := make([]tidepool.PoolMetricsSnapshot, 0, len(c.order))
	for _, kind := range c.order {
		entry := c.entries[kind]
		snap := entry.Pool.Snapshot()
		snap.CircuitBreakerState = entry.Breaker.State().String()
		snaps = append(snaps, snap)
	}
	return snaps
}

// Close shuts down all pools.
func (c *Cascade) Close() error {
	var err error
	for _, kind := range c.order {
		if cerr := c.entries[kind].Pool.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
