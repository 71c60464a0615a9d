// Package events provides an in-process pub/sub bus for pool and breaker
// lifecycle events.
package events

import (
	"sync"

	"github.com/fwojciec/tidepool"
)

// Ensure Bus implements tidepool.Publisher at compile time.
var _ tidepool.Publisher = (*Bus)(nil)

// DefaultHistorySize is the number of events retained for inspection.
const DefaultHistorySize = 100

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls behind by more than this drops events rather than blocking
// the publisher.
const subscriberBuffer = 16

// Bus fans events out to subscribers and keeps a bounded history.
// Publish never blocks: slow subscribers lose events.
//
// Bus is safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan tidepool.Event]struct{}
	history     []tidepool.Event
	maxHistory  int
}

// NewBus creates a Bus retaining up to maxHistory recent events.
// A maxHistory of zero or less uses DefaultHistorySize.
func NewBus(maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	return &Bus{
		subscribers: make(map[chan tidepool.Event]struct{}),
		history:     make([]tidepool.Event, 0, maxHistory),
		maxHistory:  maxHistory,
	}
}

// Subscribe registers a new subscriber channel.
func (b *Bus) Subscribe() <-chan tidepool.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan tidepool.Event, subscriberBuffer)
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan tidepool.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		if ch == sub {
			delete(b.subscribers, ch)
			close(ch)
			return
		}
	}
}

// Publish records the event and broadcasts it to all subscribers without
// blocking.
func (b *Bus) Publish(event tidepool.Event) {
	b.mu.Lock()
	if len(b.history) >= b.maxHistory {
		b.history = append(b.history[1:], event)
	} else {
		b.history = append(b.history, event)
	}
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full; drop rather than block the pool.
		}
	}
}

// Recent returns up to limit most recent events, oldest first.
// A limit of zero or less returns the full retained history.
func (b *Bus) Recent(limit int) []tidepool.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	start := len(b.history) - limit
	out := make([]tidepool.Event, limit)
	copy(out, b.history[start:])
	return out
}
