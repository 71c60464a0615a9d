package tidepool

import "time"

// EventType identifies a pool or breaker lifecycle event.
type EventType string

// Lifecycle event types.
const (
	EventInstanceCreated  EventType = "instance_created"
	EventInstanceRetired  EventType = "instance_retired"
	EventPoolExhausted    EventType = "pool_exhausted"
	EventBreakerOpened    EventType = "breaker_opened"
	EventBreakerHalfOpen  EventType = "breaker_half_open"
	EventBreakerClosed    EventType = "breaker_closed"
)

// Event is a pool lifecycle notification.
type Event struct {
	Type       EventType    `json:"type"`
	Strategy   StrategyKind `json:"strategy"`
	InstanceID string       `json:"instanceId,omitempty"`
	Message    string       `json:"message,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Publisher delivers lifecycle events to an external sink.
// Publish must never block the caller; slow sinks drop events.
type Publisher interface {
	Publish(event Event)
}
