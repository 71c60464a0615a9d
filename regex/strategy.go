// Package regex provides the regex-pattern extraction strategy.
// It is the cheapest fallback after CSS selectors: no DOM is built,
// content is pulled straight out of the markup with compiled patterns.
//
// The standard library regexp package is used directly; pattern
// compilation is the expensive step, which is why compiled instances
// are pooled and reused.
package regex

import (
	"bytes"
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/fwojciec/tidepool"
)

// Ensure interfaces are implemented at compile time.
var (
	_ tidepool.Strategy = (*Strategy)(nil)
	_ tidepool.Instance = (*Instance)(nil)
)

// instanceMemoryEstimate is the coarse per-instance footprint reported
// to the pool: a handful of compiled patterns.
const instanceMemoryEstimate = 512 << 10 // 512KB

// Default extraction patterns.
const (
	titlePattern     = `(?is)<title[^>]*>(.*?)</title>`
	headingPattern   = `(?is)<h1[^>]*>(.*?)</h1>`
	paragraphPattern = `(?is)<p[^>]*>(.*?)</p>`
	stripPattern     = `(?s)<[^>]*>`
	dropPattern      = `(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`
)

// Strategy creates regex-pattern extraction instances.
type Strategy struct{}

// NewStrategy creates a regex-pattern strategy.
func NewStrategy() *Strategy { return &Strategy{} }

// Kind identifies the strategy.
func (s *Strategy) Kind() tidepool.StrategyKind { return tidepool.StrategyRegex }

// NewInstance compiles the extraction patterns. Compilation cost is paid
// once per pooled instance, not per extraction.
func (s *Strategy) NewInstance(_ context.Context) (tidepool.Instance, error) {
	inst := &Instance{}
	var err error
	if inst.title, err = regexp.Compile(titlePattern); err != nil {
		return nil, err
	}
	if inst.heading, err = regexp.Compile(headingPattern); err != nil {
		return nil, err
	}
	if inst.paragraph, err = regexp.Compile(paragraphPattern); err != nil {
		return nil, err
	}
	if inst.strip, err = regexp.Compile(stripPattern); err != nil {
		return nil, err
	}
	if inst.drop, err = regexp.Compile(dropPattern); err != nil {
		return nil, err
	}
	return inst, nil
}

// Instance extracts content with precompiled patterns.
type Instance struct {
	title     *regexp.Regexp
	heading   *regexp.Regexp
	paragraph *regexp.Regexp
	strip     *regexp.Regexp
	drop      *regexp.Regexp
}

// Extract pulls the title and paragraph text out of the raw markup.
func (i *Instance) Extract(ctx context.Context, content []byte, _ string) (*tidepool.ExtractedDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, tidepool.Errorf(tidepool.EINVALID, "empty input")
	}

	cleaned := i.drop.ReplaceAll(content, nil)

	title := i.firstMatch(i.title, cleaned)
	if title == "" {
		title = i.firstMatch(i.heading, cleaned)
	}

	var (
		paragraphs []string
		htmlParts  []string
	)
	for _, m := range i.paragraph.FindAllSubmatch(cleaned, -1) {
		text := i.plainText(m[1])
		if text == "" {
			continue
		}
		paragraphs = append(paragraphs, text)
		htmlParts = append(htmlParts, string(m[0]))
	}
	if len(paragraphs) == 0 {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "no paragraphs matched")
	}

	text := strings.Join(paragraphs, "\n\n")
	words := len(strings.Fields(text))

	return &tidepool.ExtractedDoc{
		Title:        title,
		Text:         text,
		ContentHTML:  strings.Join(htmlParts, "\n"),
		WordCount:    words,
		QualityScore: score(words, title != ""),
	}, nil
}

// MemoryEstimate reports the instance's approximate resident size.
func (i *Instance) MemoryEstimate() uint64 { return instanceMemoryEstimate }

// Close releases instance resources. Compiled patterns need no cleanup.
func (i *Instance) Close() error { return nil }

func (i *Instance) firstMatch(re *regexp.Regexp, content []byte) string {
	m := re.FindSubmatch(content)
	if m == nil {
		return ""
	}
	return i.plainText(m[1])
}

// plainText strips nested tags, unescapes entities, and collapses
// whitespace.
func (i *Instance) plainText(b []byte) string {
	s := html.UnescapeString(string(i.strip.ReplaceAll(b, nil)))
	return strings.Join(strings.Fields(s), " ")
}

// score rates a pattern extraction. Pattern matching loses structure the
// DOM-based strategies keep, so the ceiling is lower.
func score(words int, hasTitle bool) int {
	s := 25
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
