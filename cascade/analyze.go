package cascade

import (
	"bytes"
	"strings"

	"github.com/fwojciec/tidepool"
)

// ContentAnalysis holds heuristics about a page used to pick a strategy
// order. Pages that render client-side or sit behind anti-bot protection
// are better served by the browser; plain articles by the cheap parsers.
type ContentAnalysis struct {
	// HasFramework indicates React/Vue/Angular or other SPA markers.
	HasFramework bool

	// HasAntiBot indicates anti-scraping protection markers.
	HasAntiBot bool

	// ContentRatio is the text-to-markup ratio in [0, 1].
	ContentRatio float64

	// HasMainContent indicates semantic main-content tags.
	HasMainContent bool
}

// NeedsBrowser reports whether the page likely requires JavaScript
// execution to produce its content.
func (a ContentAnalysis) NeedsBrowser() bool {
	return a.HasAntiBot || a.HasFramework || a.ContentRatio < 0.1
}

var frameworkMarkers = []string{
	"__next_data__",
	"data-reactroot",
	"__webpack_require__",
	"window.__initial_state__",
	"data-react-helmet",
	"v-app",
	"data-vue-app",
	"ng-app",
	"ng-version",
}

var antiBotMarkers = []string{
	"cf-browser-verification",
	"grecaptcha",
	"hcaptcha",
	"perimeterx",
}

// Analyze inspects page bytes and returns ordering heuristics.
func Analyze(content []byte) ContentAnalysis {
	lower := strings.ToLower(string(content))

	a := ContentAnalysis{
		ContentRatio: contentRatio(content),
		HasMainContent: strings.Contains(lower, "<article") ||
			strings.Contains(lower, "<main") ||
			strings.Contains(lower, `id="content"`),
	}
	for _, m := range frameworkMarkers {
		if strings.Contains(lower, m) {
			a.HasFramework = true
			break
		}
	}
	for _, m := range antiBotMarkers {
		if strings.Contains(lower, m) {
			a.HasAntiBot = true
			break
		}
	}
	return a
}

// RecommendOrder returns a strategy order suited to the page: cheapest
// first for server-rendered content, browser first for pages that need
// JavaScript execution. Strategies not registered with the cascade are
// skipped at execution time.
func RecommendOrder(content []byte) []tidepool.StrategyKind {
	if Analyze(content).NeedsBrowser() {
		return []tidepool.StrategyKind{
			tidepool.StrategyBrowser,
			tidepool.StrategyWasm,
			tidepool.StrategyReadability,
			tidepool.StrategyCSS,
			tidepool.StrategyRegex,
		}
	}
	return []tidepool.StrategyKind{
		tidepool.StrategyCSS,
		tidepool.StrategyRegex,
		tidepool.StrategyReadability,
		tidepool.StrategyWasm,
		tidepool.StrategyBrowser,
	}
}

// contentRatio estimates how much of the page is text versus markup.
// A low ratio suggests client-side rendering.
func contentRatio(content []byte) float64 {
	if len(content) == 0 {
		return 0
	}
	var textLen int
	rest := content
	for {
		lt := bytes.IndexByte(rest, '<')
		if lt < 0 {
			textLen += len(bytes.TrimSpace(rest))
			break
		}
		textLen += len(bytes.TrimSpace(rest[:lt]))
		gt := bytes.IndexByte(rest[lt:], '>')
		if gt < 0 {
			break
		}
		rest = rest[lt+gt+1:]
	}
	return float64(textLen) / float64(len(content))
}
