package events_test

import (
	"testing"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishAndSubscribe(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(10)
	sub := bus.Subscribe()

	bus.Publish(tidepool.Event{Type: tidepool.EventInstanceCreated, Strategy: tidepool.StrategyCSS})

	event := <-sub
	assert.Equal(t, tidepool.EventInstanceCreated, event.Type)
	assert.Equal(t, tidepool.StrategyCSS, event.Strategy)
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(10)
	_ = bus.Subscribe() // never drained

	// Publishing far more than the subscriber buffer must not block.
	for range 100 {
		bus.Publish(tidepool.Event{Type: tidepool.EventInstanceCreated})
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(10)
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)
}

func TestBus_Recent(t *testing.T) {
	t.Parallel()

	t.Run("bounds the retained history", func(t *testing.T) {
		t.Parallel()

		bus := events.NewBus(3)
		for i := range 5 {
			bus.Publish(tidepool.Event{Type: tidepool.EventInstanceCreated, Message: string(rune('a' + i))})
		}

		recent := bus.Recent(0)
		require.Len(t, recent, 3)
		assert.Equal(t, "c", recent[0].Message)
		assert.Equal(t, "e", recent[2].Message)
	})

	t.Run("returns the newest events oldest first", func(t *testing.T) {
		t.Parallel()

		bus := events.NewBus(10)
		bus.Publish(tidepool.Event{Message: "first"})
		bus.Publish(tidepool.Event{Message: "second"})
		bus.Publish(tidepool.Event{Message: "third"})

		recent := bus.Recent(2)
		require.Len(t, recent, 2)
		assert.Equal(t, "second", recent[0].Message)
		assert.Equal(t, "third", recent[1].Message)
	})
}
