// Package cache provides a caching decorator for extraction.
// Successful results are kept in a bounded LRU keyed by content hash,
// and content that exhausted every strategy is remembered in a Bloom
// filter so known-bad pages skip the cascade entirely.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/cascade"

	"github.com/bits-and-blooms/bloom/v3"
)

// Ensure Extractor implements tidepool.Extractor at compile time.
var _ tidepool.Extractor = (*Extractor)(nil)

// DefaultMaxEntries is the default LRU capacity.
const DefaultMaxEntries = 1024

// falsePositiveRate for the negative filter. A false positive only costs
// one unnecessary cascade run.
const falsePositiveRate = 0.01

// Extractor wraps another extractor with result caching.
//
// Extractor is safe for concurrent use.
type Extractor struct {
	next tidepool.Extractor

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	max     int

	// negative remembers content hashes for which every strategy failed.
	// Entries are never removed; false positives are tolerable, false
	// negatives impossible.
	negative *bloom.BloomFilter

	hits, misses uint64
}

type entry struct {
	key string
	doc *tidepool.ExtractedDoc
}

// New creates a caching extractor around next. maxEntries of zero or
// less uses DefaultMaxEntries; expectedItems sizes the negative filter.
func New(next tidepool.Extractor, maxEntries int, expectedItems uint) *Extractor {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if expectedItems == 0 {
		expectedItems = uint(maxEntries)
	}
	return &Extractor{
		next:     next,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		max:      maxEntries,
		negative: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

// Extract returns a cached result when available, skips content known to
// exhaust every strategy, and otherwise delegates to the wrapped
// extractor, caching its outcome. Requests with an explicit strategy
// order bypass the cache: the cached result may have come from a
// different strategy than the caller is asking for.
func (e *Extractor) Extract(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
	if len(req.Order) > 0 {
		return e.next.Extract(ctx, req)
	}

	key := cacheKey(req.Content, req.URL)

	e.mu.Lock()
	if el, ok := e.entries[key]; ok {
		e.order.MoveToFront(el)
		e.hits++
		doc := el.Value.(*entry).doc
		e.mu.Unlock()
		copied := *doc
		return &copied, nil
	}
	negative := e.negative.TestString(key)
	e.misses++
	e.mu.Unlock()

	if negative {
		return nil, tidepool.Errorf(tidepool.EEXHAUSTED, "content previously exhausted all strategies")
	}

	doc, err := e.next.Extract(ctx, req)
	if err != nil {
		// Filter entries can never be removed, so only remember content
		// that a strategy actually processed and gave up on. An exhaustion
		// where everything was skipped is an outage, not bad content.
		var exhausted *cascade.ExhaustedError
		if errors.As(err, &exhausted) && exhausted.Attempted() {
			e.mu.Lock()
			e.negative.AddString(key)
			e.mu.Unlock()
		}
		return nil, err
	}

	e.mu.Lock()
	el := e.order.PushFront(&entry{key: key, doc: doc})
	e.entries[key] = el
	if e.order.Len() > e.max {
		oldest := e.order.Back()
		e.order.Remove(oldest)
		delete(e.entries, oldest.Value.(*entry).key)
	}
	e.mu.Unlock()

	return doc, nil
}

// Stats returns the cache hit and miss counts.
func (e *Extractor) Stats() (hits, misses uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits, e.misses
}

// cacheKey derives a stable key from the content hash and URL.
func cacheKey(content []byte, url string) string {
	h := xxhash.New()
	_, _ = h.Write(content)
	_, _ = h.WriteString(url)
	return fmt.Sprintf("%016x", h.Sum64())
}
