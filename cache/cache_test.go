package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/cache"
	"github.com/fwojciec/tidepool/cascade"
	"github.com/fwojciec/tidepool/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_CachesSuccesses(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	inner := &mock.Extractor{
		ExtractFn: func(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
			calls.Add(1)
			return &tidepool.ExtractedDoc{Text: "content", Strategy: tidepool.StrategyCSS}, nil
		},
	}

	c := cache.New(inner, 10, 10)
	req := tidepool.ExtractRequest{Content: []byte("<p>x</p>"), URL: "https://example.com"}

	first, err := c.Extract(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Extract(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, first.Text, second.Text)

	// The cached copy is isolated from caller mutation.
	second.Text = "mutated"
	third, err := c.Extract(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "content", third.Text)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestExtractor_ExplicitOrderBypassesCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	inner := &mock.Extractor{
		ExtractFn: func(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
			calls.Add(1)
			return &tidepool.ExtractedDoc{Text: "content"}, nil
		},
	}

	c := cache.New(inner, 10, 10)
	req := tidepool.ExtractRequest{
		Content: []byte("<p>x</p>"),
		Order:   []tidepool.StrategyKind{tidepool.StrategyRegex},
	}

	for range 3 {
		_, err := c.Extract(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), calls.Load())
}

func TestExtractor_RemembersExhaustedContent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	inner := &mock.Extractor{
		ExtractFn: func(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
			calls.Add(1)
			return nil, &cascade.ExhaustedError{
				URL: req.URL,
				Attempts: []cascade.Attempt{
					{Strategy: tidepool.StrategyCSS, Err: tidepool.Errorf(tidepool.ENOTFOUND, "no content found")},
				},
			}
		},
	}

	c := cache.New(inner, 10, 10)
	req := tidepool.ExtractRequest{Content: []byte("<p>hopeless</p>"), URL: "https://example.com"}

	_, err := c.Extract(context.Background(), req)
	require.Error(t, err)

	// The second attempt is short-circuited by the negative filter.
	_, err = c.Extract(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, tidepool.EEXHAUSTED, tidepool.ErrorCode(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestExtractor_OutagesAreNotRemembered(t *testing.T) {
	t.Parallel()

	// Exhaustion with every strategy skipped means open breakers or
	// drained pools, not bad content. The page must extract normally
	// once capacity returns.
	var calls atomic.Int64
	inner := &mock.Extractor{
		ExtractFn: func(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
			if calls.Add(1) == 1 {
				return nil, &cascade.ExhaustedError{
					URL: req.URL,
					Attempts: []cascade.Attempt{
						{Strategy: tidepool.StrategyCSS, Skipped: true, Reason: "circuit breaker open"},
						{Strategy: tidepool.StrategyBrowser, Skipped: true, Reason: "pool exhausted"},
					},
				}
			}
			return &tidepool.ExtractedDoc{Text: "recovered", Strategy: tidepool.StrategyCSS}, nil
		},
	}

	c := cache.New(inner, 10, 10)
	req := tidepool.ExtractRequest{Content: []byte("<p>fine content</p>"), URL: "https://example.com"}

	_, err := c.Extract(context.Background(), req)
	require.Error(t, err)

	doc, err := c.Extract(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "recovered", doc.Text)
	assert.Equal(t, int64(2), calls.Load())
}

func TestExtractor_TransientErrorsAreNotRemembered(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	inner := &mock.Extractor{
		ExtractFn: func(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
			calls.Add(1)
			return nil, errors.New("transient failure")
		},
	}

	c := cache.New(inner, 10, 10)
	req := tidepool.ExtractRequest{Content: []byte("<p>x</p>")}

	_, err := c.Extract(context.Background(), req)
	require.Error(t, err)
	_, err = c.Extract(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestExtractor_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	inner := &mock.Extractor{
		ExtractFn: func(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
			calls.Add(1)
			return &tidepool.ExtractedDoc{Text: string(req.Content)}, nil
		},
	}

	c := cache.New(inner, 2, 10)
	reqA := tidepool.ExtractRequest{Content: []byte("a")}
	reqB := tidepool.ExtractRequest{Content: []byte("b")}
	reqC := tidepool.ExtractRequest{Content: []byte("c")}

	_, _ = c.Extract(context.Background(), reqA)
	_, _ = c.Extract(context.Background(), reqB)

	// Touch A so B becomes the eviction candidate.
	_, _ = c.Extract(context.Background(), reqA)
	_, _ = c.Extract(context.Background(), reqC)
	require.Equal(t, int64(3), calls.Load())

	// A is still cached, B was evicted.
	_, _ = c.Extract(context.Background(), reqA)
	assert.Equal(t, int64(3), calls.Load())
	_, _ = c.Extract(context.Background(), reqB)
	assert.Equal(t, int64(4), calls.Load())
}
