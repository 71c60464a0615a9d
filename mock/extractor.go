package mock

import (
	"context"

	"github.com/fwojciec/tidepool"
)

var _ tidepool.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of tidepool.Extractor.
type Extractor struct {
	ExtractFn func(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error)
}

func (e *Extractor) Extract(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
	return e.ExtractFn(ctx, req)
}

var _ tidepool.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of tidepool.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) ([]byte, error)
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.FetchFn(ctx, url)
}

var _ tidepool.Preprocessor = (*Preprocessor)(nil)

// Preprocessor is a mock implementation of tidepool.Preprocessor.
type Preprocessor struct {
	AppliesFn func(content []byte) bool
	ProcessFn func(ctx context.Context, content []byte) ([]byte, error)
}

func (p *Preprocessor) Applies(content []byte) bool {
	return p.AppliesFn(content)
}

func (p *Preprocessor) Process(ctx context.Context, content []byte) ([]byte, error) {
	return p.ProcessFn(ctx, content)
}
