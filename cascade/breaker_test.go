package cascade_test

import (
	"testing"
	"time"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/cascade"
	"github.com/fwojciec/tidepool/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// breakerConfig returns a config with a small, fast breaker:
// 3 failures in a window of 5, 20ms open, 2 probes to close.
func breakerConfig() tidepool.PoolConfig {
	cfg := tidepool.DefaultPoolConfig()
	cfg.BreakerThreshold = 0.5
	cfg.BreakerWindowSize = 5
	cfg.BreakerOpenDuration = 20 * time.Millisecond
	cfg.BreakerProbeCount = 2
	return cfg
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	t.Parallel()

	b := cascade.NewCircuitBreaker(tidepool.StrategyCSS, breakerConfig())
	require.Equal(t, cascade.StateClosed, b.State())

	// Two failures among successes stay under the threshold.
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(true)
	assert.Equal(t, cascade.StateClosed, b.State())
	assert.True(t, b.Allow())

	// The third failure in the window trips it.
	b.Record(false)
	assert.Equal(t, cascade.StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestCircuitBreaker_WindowEvictsOldOutcomes(t *testing.T) {
	t.Parallel()

	b := cascade.NewCircuitBreaker(tidepool.StrategyCSS, breakerConfig())

	// Two early failures scroll out of the window before the next two
	// arrive, so the breaker never sees three failures at once.
	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(true)
	b.Record(true)
	b.Record(true) // evicts the first failure
	b.Record(false)
	b.Record(true) // evicts the second failure
	b.Record(false)

	assert.Equal(t, cascade.StateClosed, b.State())
}

func TestCircuitBreaker_HalfOpenProbes(t *testing.T) {
	t.Parallel()

	t.Run("transitions to half-open after the open duration", func(t *testing.T) {
		t.Parallel()

		b := cascade.NewCircuitBreaker(tidepool.StrategyCSS, breakerConfig())
		for range 3 {
			b.Record(false)
		}
		require.Equal(t, cascade.StateOpen, b.State())
		require.False(t, b.Allow())

		time.Sleep(25 * time.Millisecond)
		assert.True(t, b.Allow())
		assert.Equal(t, cascade.StateHalfOpen, b.State())
	})

	t.Run("a probe failure reopens immediately", func(t *testing.T) {
		t.Parallel()

		b := cascade.NewCircuitBreaker(tidepool.StrategyCSS, breakerConfig())
		for range 3 {
			b.Record(false)
		}
		time.Sleep(25 * time.Millisecond)
		require.True(t, b.Allow())

		b.Record(false)
		assert.Equal(t, cascade.StateOpen, b.State())
		assert.False(t, b.Allow())
	})

	t.Run("bounds outstanding probes while half-open", func(t *testing.T) {
		t.Parallel()

		b := cascade.NewCircuitBreaker(tidepool.StrategyCSS, breakerConfig())
		for range 3 {
			b.Record(false)
		}
		time.Sleep(25 * time.Millisecond)

		// Only probeCount attempts get through before any outcome lands.
		require.True(t, b.Allow())
		require.True(t, b.Allow())
		assert.False(t, b.Allow())

		// A recorded success fills a probe slot, so no new admission yet.
		b.Record(true)
		assert.False(t, b.Allow())

		// The second success closes the breaker and admission resumes.
		b.Record(true)
		require.Equal(t, cascade.StateClosed, b.State())
		assert.True(t, b.Allow())
	})

	t.Run("abandoned probe returns its slot", func(t *testing.T) {
		t.Parallel()

		b := cascade.NewCircuitBreaker(tidepool.StrategyCSS, breakerConfig())
		for range 3 {
			b.Record(false)
		}
		time.Sleep(25 * time.Millisecond)

		require.True(t, b.Allow())
		require.True(t, b.Allow())
		assert.False(t, b.Allow())

		// An attempt that never ran hands its slot back, so another
		// caller can probe in its place.
		b.Forget()
		assert.True(t, b.Allow())
		assert.False(t, b.Allow())
	})

	t.Run("consecutive probe successes close with fresh window", func(t *testing.T) {
		t.Parallel()

		b := cascade.NewCircuitBreaker(tidepool.StrategyCSS, breakerConfig())
		for range 3 {
			b.Record(false)
		}
		time.Sleep(25 * time.Millisecond)
		require.True(t, b.Allow())

		b.Record(true)
		require.Equal(t, cascade.StateHalfOpen, b.State())
		b.Record(true)
		require.Equal(t, cascade.StateClosed, b.State())

		// The window was reset on close: two failures do not trip it.
		b.Record(false)
		b.Record(false)
		assert.Equal(t, cascade.StateClosed, b.State())
	})
}

func TestCircuitBreaker_PublishesTransitions(t *testing.T) {
	t.Parallel()

	pub := &mock.Publisher{}
	b := cascade.NewCircuitBreaker(tidepool.StrategyWasm, breakerConfig(),
		cascade.WithBreakerPublisher(pub))

	for range 3 {
		b.Record(false)
	}
	time.Sleep(25 * time.Millisecond)
	require.True(t, b.Allow())
	b.Record(true)
	b.Record(true)

	var types []tidepool.EventType
	for _, e := range pub.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []tidepool.EventType{
		tidepool.EventBreakerOpened,
		tidepool.EventBreakerHalfOpen,
		tidepool.EventBreakerClosed,
	}, types)
}

func TestBreakerState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", cascade.StateClosed.String())
	assert.Equal(t, "open", cascade.StateOpen.String())
	assert.Equal(t, "half_open", cascade.StateHalfOpen.String())
}
