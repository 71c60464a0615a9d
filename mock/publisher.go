package mock

import (
	"sync"

	"github.com/fwojciec/tidepool"
)

var _ tidepool.Publisher = (*Publisher)(nil)

// Publisher is a mock implementation of tidepool.Publisher. When
// PublishFn is nil, events are recorded and retrievable via Events.
type Publisher struct {
	PublishFn func(event tidepool.Event)

	mu     sync.Mutex
	events []tidepool.Event
}

func (p *Publisher) Publish(event tidepool.Event) {
	if p.PublishFn != nil {
		p.PublishFn(event)
		return
	}
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (p *Publisher) Events() []tidepool.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tidepool.Event, len(p.events))
	copy(out, p.events)
	return out
}
