// Package rod provides the headless-browser extraction strategy using
// Chrome automation via go-rod. Each pooled instance owns a dedicated
// browser process, so the pool's capacity bound doubles as a cap on
// concurrent Chrome processes and instance retirement doubles as
// browser recycling.
package rod

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/fwojciec/tidepool"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure interfaces are implemented at compile time.
var (
	_ tidepool.Strategy = (*Strategy)(nil)
	_ tidepool.Instance = (*Instance)(nil)
)

// Chrome accumulates memory over time and the baseline never returns to
// initial levels even with proper page cleanup. The estimate below
// models that growth so instance health checks retire bloated browsers
// instead of letting them accumulate indefinitely.
const (
	baseMemoryEstimate    = 128 << 20 // fresh headless Chrome
	perPageMemoryEstimate = 512 << 10 // observed growth per rendered page
)

// ContentExtractor processes rendered HTML into a document. It lets a
// DOM-based strategy run against the browser's post-JavaScript output.
type ContentExtractor func(ctx context.Context, renderedHTML []byte, url string) (*tidepool.ExtractedDoc, error)

// Strategy creates browser-backed extraction instances.
type Strategy struct {
	limiter   *DomainLimiter
	extractor ContentExtractor
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithDomainLimiter throttles navigation per origin across all browser
// instances created by this strategy.
func WithDomainLimiter(l *DomainLimiter) Option {
	return func(s *Strategy) { s.limiter = l }
}

// WithContentExtractor replaces the built-in title and body-text
// extraction with a custom extractor run on the rendered HTML.
func WithContentExtractor(fn ContentExtractor) Option {
	return func(s *Strategy) { s.extractor = fn }
}

// NewStrategy creates a browser strategy.
func NewStrategy(opts ...Option) *Strategy {
	s := &Strategy{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind identifies the strategy.
func (s *Strategy) Kind() tidepool.StrategyKind { return tidepool.StrategyBrowser }

// NewInstance launches a headless Chrome browser with stability flags.
// Returns an error if Chrome/Chromium cannot be found or launched.
func (s *Strategy) NewInstance(_ context.Context) (tidepool.Instance, error) {
	lnchr := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(true)

	u, err := lnchr.Launch()
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "launching browser: %v", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		lnchr.Kill()
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "connecting to browser: %v", err)
	}

	return &Instance{
		browser:   browser,
		launcher:  lnchr,
		limiter:   s.limiter,
		extractor: s.extractor,
	}, nil
}

// Instance is a dedicated headless Chrome browser.
type Instance struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	limiter   *DomainLimiter
	extractor ContentExtractor
	pageCount atomic.Int64
}

// Extract renders the page and extracts its content. When a URL is
// given the browser navigates to it so JavaScript-built content is
// present; otherwise the provided markup is loaded directly.
func (i *Instance) Extract(ctx context.Context, content []byte, rawURL string) (*tidepool.ExtractedDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(content) == 0 && rawURL == "" {
		return nil, tidepool.Errorf(tidepool.EINVALID, "empty input")
	}

	page, err := i.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "creating page: %v", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if rawURL != "" {
		if err := i.waitDomain(ctx, rawURL); err != nil {
			return nil, err
		}
		if err := page.Navigate(rawURL); err != nil {
			return nil, tidepool.Errorf(tidepool.EINTERNAL, "navigating to %s: %v", rawURL, err)
		}
	} else {
		if err := page.SetDocumentContent(string(content)); err != nil {
			return nil, tidepool.Errorf(tidepool.EINTERNAL, "loading document: %v", err)
		}
	}

	if err := page.WaitLoad(); err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "waiting for page load: %v", err)
	}

	i.pageCount.Add(1)

	renderedHTML, err := page.HTML()
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "reading rendered HTML: %v", err)
	}

	if i.extractor != nil {
		return i.extractor(ctx, []byte(renderedHTML), rawURL)
	}
	return i.extractPage(page, renderedHTML)
}

// extractPage pulls the title and body text out of the live page.
func (i *Instance) extractPage(page *rod.Page, renderedHTML string) (*tidepool.ExtractedDoc, error) {
	obj, err := page.Eval(`() => ({
		title: document.title,
		text: document.body ? document.body.innerText : "",
	})`)
	if err != nil {
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "evaluating page content: %v", err)
	}

	title := obj.Value.Get("title").Str()
	text := strings.Join(strings.Fields(obj.Value.Get("text").Str()), " ")
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "rendered page has no text content")
	}

	return &tidepool.ExtractedDoc{
		Title:        title,
		Text:         text,
		ContentHTML:  renderedHTML,
		WordCount:    words,
		QualityScore: score(words, title != ""),
	}, nil
}

// MemoryEstimate models browser memory from the number of pages
// rendered so far.
func (i *Instance) MemoryEstimate() uint64 {
	return baseMemoryEstimate + uint64(i.pageCount.Load())*perPageMemoryEstimate
}

// Close shuts down the browser and its launcher process.
func (i *Instance) Close() error {
	err := i.browser.Close()
	i.launcher.Kill()
	return err
}

func (i *Instance) waitDomain(ctx context.Context, rawURL string) error {
	if i.limiter == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return tidepool.Errorf(tidepool.EINVALID, "invalid url %q: %v", rawURL, err)
	}
	return i.limiter.Wait(ctx, u.Hostname())
}

// score rates a rendered extraction. Body innerText includes chrome like
// navigation, so the base is moderate; a DOM-based ContentExtractor
// scores its own output instead.
func score(words int, hasTitle bool) int {
	s := 50
	if words >= 200 {
		s += 25
	} else if words >= 50 {
		s += 15
	}
	if hasTitle {
		s += 10
	}
	return s
}
