package slog

import (
	"log/slog"

	"github.com/fwojciec/tidepool"
)

// Ensure LoggingPublisher implements tidepool.Publisher.
var _ tidepool.Publisher = (*LoggingPublisher)(nil)

// LoggingPublisher logs lifecycle events before forwarding them. The
// wrapped publisher may be nil, in which case events are only logged.
type LoggingPublisher struct {
	next   tidepool.Publisher
	logger *slog.Logger
}

// NewLoggingPublisher creates a new LoggingPublisher.
func NewLoggingPublisher(next tidepool.Publisher, logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{next: next, logger: logger}
}

// Publish logs the event and forwards it.
func (p *LoggingPublisher) Publish(event tidepool.Event) {
	p.logger.Info("pool event",
		"type", string(event.Type),
		"strategy", string(event.Strategy),
		"instance", event.InstanceID,
		"message", event.Message,
	)
	if p.next != nil {
		p.next.Publish(event)
	}
}
