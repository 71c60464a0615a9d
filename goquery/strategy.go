// Package goquery provides the CSS-selector extraction strategy.
package goquery

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/tidepool"
)

// Ensure interfaces are implemented at compile time.
var (
	_ tidepool.Strategy = (*Strategy)(nil)
	_ tidepool.Instance = (*Instance)(nil)
)

// instanceMemoryEstimate is the coarse per-instance footprint reported to
// the pool. Selector sets are small and the parser retains nothing
// between extractions, so a constant is accurate enough for health
// decisions.
const instanceMemoryEstimate = 1 << 20 // 1MB

// SelectorSet defines the selectors an instance extracts with.
// Selectors are tried in order; the first match wins.
type SelectorSet struct {
	// Title selectors, tried in order.
	Title []string

	// Content selectors for the main content region, tried in order.
	Content []string

	// Exclude selectors removed from the content region before text
	// extraction (navigation, chrome, scripts).
	Exclude []string
}

// DefaultSelectorSet returns selectors that work for most article-style
// pages: semantic content tags first, body as a last resort.
func DefaultSelectorSet() SelectorSet {
	return SelectorSet{
		Title:   []string{"title", "h1"},
		Content: []string{"article", "main", "#content", ".content", "body"},
		Exclude: []string{"script", "style", "noscript", "nav", "header", "footer", "aside"},
	}
}

// Strategy creates CSS-selector extraction instances.
type Strategy struct {
	selectors SelectorSet
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithSelectors overrides the default selector set.
func WithSelectors(s SelectorSet) Option {
	return func(st *Strategy) { st.selectors = s }
}

// NewStrategy creates a CSS-selector strategy.
func NewStrategy(opts ...Option) *Strategy {
	s := &Strategy{selectors: DefaultSelectorSet()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind identifies the strategy.
func (s *Strategy) Kind() tidepool.StrategyKind { return tidepool.StrategyCSS }

// NewInstance creates an extraction instance.
func (s *Strategy) NewInstance(_ context.Context) (tidepool.Instance, error) {
	return &Instance{selectors: s.selectors}, nil
}

// Instance extracts content with a fixed selector set.
type Instance struct {
	selectors SelectorSet
}

// Extract parses the HTML and extracts the first matching content region.
func (i *Instance) Extract(ctx context.Context, content []byte, _ string) (*tidepool.ExtractedDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, tidepool.Errorf(tidepool.EINVALID, "empty HTML input")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINVALID, "failed to parse HTML: %v", err)
	}

	var title string
	for _, sel := range i.selectors.Title {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			title = t
			break
		}
	}

	for _, sel := range i.selectors.Exclude {
		doc.Find(sel).Remove()
	}

	var (
		region   *goquery.Selection
		semantic bool
	)
	for idx, sel := range i.selectors.Content {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if strings.TrimSpace(s.Text()) == "" {
			continue
		}
		region = s
		semantic = idx < len(i.selectors.Content)-1 // body fallback is last
		break
	}
	if region == nil {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "no content matched selectors")
	}

	contentHTML, err := goquery.OuterHtml(region)
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "rendering content: %v", err)
	}

	text := strings.Join(strings.Fields(region.Text()), " ")
	words := len(strings.Fields(text))

	return &tidepool.ExtractedDoc{
		Title:        title,
		Text:         text,
		ContentHTML:  contentHTML,
		WordCount:    words,
		QualityScore: score(semantic, words, title != ""),
	}, nil
}

// MemoryEstimate reports the instance's approximate resident size.
func (i *Instance) MemoryEstimate() uint64 { return instanceMemoryEstimate }

// Close releases instance resources. CSS instances hold none.
func (i *Instance) Close() error { return nil }

// score rates an extraction: semantic content regions and substantial
// text score higher than a body-wide fallback scrape.
func score(semantic bool, words int, hasTitle bool) int {
	s := 30
	if semantic {
		s += 25
	}
	if words >= 200 {
		s += 25
	} else if words >= 50 {
		s += 15
	}
	if hasTitle {
		s += 10
	}
	if s > 100 {
		s = 100
	}
	return s
}
