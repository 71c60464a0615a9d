package tidepool

import (
	"context"
	"strings"
)

// StrategyKind identifies one interchangeable extraction approach.
type StrategyKind string

// Known strategy kinds, cheapest first.
const (
	StrategyCSS         StrategyKind = "css"
	StrategyRegex       StrategyKind = "regex"
	StrategyReadability StrategyKind = "readability"
	StrategyWasm        StrategyKind = "wasm"
	StrategyBrowser     StrategyKind = "browser"
)

// Valid reports whether k is a known strategy kind.
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategyCSS, StrategyRegex, StrategyReadability, StrategyWasm, StrategyBrowser:
		return true
	}
	return false
}

// ParseStrategyKind parses a strategy kind from its string form.
func ParseStrategyKind(s string) (StrategyKind, error) {
	k := StrategyKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", Errorf(EINVALID, "invalid strategy kind %q", s)
	}
	return k, nil
}

// DefaultStrategyOrder returns the default fallback order: cheapest and
// fastest strategies first, the browser last.
func DefaultStrategyOrder() []StrategyKind {
	return []StrategyKind{StrategyCSS, StrategyRegex, StrategyReadability, StrategyWasm, StrategyBrowser}
}

// Strategy is a factory for extraction engine instances of one kind.
// Strategy internals (selector matching, pattern compilation, sandboxed
// module execution, browser session control) are opaque to the pooling
// and cascade layers.
type Strategy interface {
	// Kind identifies the strategy.
	Kind() StrategyKind

	// NewInstance creates a live handle to the strategy's extraction engine.
	// Creation may be expensive (compiling a WebAssembly module, launching
	// a browser); instances are pooled and reused across extractions.
	NewInstance(ctx context.Context) (Instance, error)
}

// Instance is one live, reusable handle to a strategy's extraction engine.
// An instance is never used by more than one extraction at a time.
type Instance interface {
	// Extract processes raw content and returns the extracted document.
	// The context carries the per-attempt timeout; implementations must
	// return promptly once it is canceled.
	Extract(ctx context.Context, content []byte, url string) (*ExtractedDoc, error)

	// MemoryEstimate reports the approximate resident size of the
	// underlying engine in bytes. Used for health-based retirement.
	MemoryEstimate() uint64

	// Close releases the underlying engine resources.
	Close() error
}

// Preprocessor normalizes non-HTML input (e.g., PDF) into text or HTML
// before the strategies run.
type Preprocessor interface {
	// Applies reports whether this preprocessor handles the content.
	Applies(content []byte) bool

	// Process converts the content into a form the strategies accept.
	Process(ctx context.Context, content []byte) ([]byte, error)
}

// ExtractRequest is a single extraction submission.
type ExtractRequest struct {
	// Content is the raw page bytes (HTML or PDF).
	Content []byte

	// URL is the source URL, used for link resolution and diagnostics.
	URL string

	// Order overrides the strategy fallback order. When empty the
	// extractor picks an order itself (configured default or
	// content-based recommendation).
	Order []StrategyKind
}

// Extractor runs an extraction request through the configured strategies.
// It is the narrow interface decorators (logging, caching) wrap.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractedDoc, error)
}

// Fetcher retrieves raw page bytes from a URL, for callers that have a
// source URL but no content. It does not execute JavaScript; pages that
// need rendering go through the browser strategy instead.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
