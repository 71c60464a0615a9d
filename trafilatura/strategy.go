// Package trafilatura provides the readability extraction strategy,
// backed by go-trafilatura's main-content detection.
package trafilatura

import (
	"bytes"
	"context"
	"strings"

	"github.com/fwojciec/tidepool"
	tf "github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Ensure interfaces are implemented at compile time.
var (
	_ tidepool.Strategy = (*Strategy)(nil)
	_ tidepool.Instance = (*Instance)(nil)
)

// instanceMemoryEstimate is the coarse per-instance footprint reported
// to the pool. Trafilatura holds no persistent state between
// extractions; the estimate covers transient parse trees.
const instanceMemoryEstimate = 4 << 20 // 4MB

// Strategy creates readability extraction instances.
type Strategy struct{}

// NewStrategy creates a readability strategy.
func NewStrategy() *Strategy { return &Strategy{} }

// Kind identifies the strategy.
func (s *Strategy) Kind() tidepool.StrategyKind { return tidepool.StrategyReadability }

// NewInstance creates an extraction instance.
func (s *Strategy) NewInstance(_ context.Context) (tidepool.Instance, error) {
	return &Instance{}, nil
}

// Instance extracts main content with trafilatura.
type Instance struct{}

// Extract processes raw HTML and returns the main content.
func (i *Instance) Extract(ctx context.Context, content []byte, url string) (*tidepool.ExtractedDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, tidepool.Errorf(tidepool.EINVALID, "empty input")
	}

	opts := tf.Options{
		EnableFallback: true,
	}

	result, err := tf.Extract(bytes.NewReader(content), opts)
	if err != nil {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "readability extraction: %v", err)
	}

	var contentHTML string
	if result.ContentNode != nil {
		contentHTML, err = renderNode(result.ContentNode)
		if err != nil {
			return nil, err
		}
	}

	text := strings.Join(strings.Fields(result.ContentText), " ")
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "no main content detected")
	}

	return &tidepool.ExtractedDoc{
		Title:        result.Metadata.Title,
		Text:         text,
		ContentHTML:  contentHTML,
		WordCount:    words,
		QualityScore: score(words, result.Metadata.Title != ""),
	}, nil
}

// MemoryEstimate reports the instance's approximate resident size.
func (i *Instance) MemoryEstimate() uint64 { return instanceMemoryEstimate }

// Close releases instance resources.
func (i *Instance) Close() error { return nil }

// renderNode converts an html.Node to a string.
func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// score rates a readability extraction. Trafilatura's content detection
// is stronger than selector matching, so successful runs score high.
func score(words int, hasTitle bool) int {
	s := 45
	if words >= 200 {
		s += 30
	} else if words >= 50 {
		s += 20
	}
	if hasTitle {
		s += 10
	}
	if s > 100 {
		s = 100
	}
	return s
}
