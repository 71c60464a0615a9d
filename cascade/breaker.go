package cascade

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fwojciec/tidepool"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState int

// Circuit breaker states.
const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the state's metric label form.
func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker tracks one strategy's failure rate over a rolling window
// of recent attempts and gates whether the strategy is attempted at all.
//
// Closed: attempts proceed; the breaker opens when the number of failures
// among the last BreakerWindowSize outcomes reaches the configured ratio
// (e.g. 5 failures in a window of 10 at a 0.5 threshold).
// Open: attempts are short-circuited without touching the pool until
// BreakerOpenDuration elapses.
// HalfOpen: probe attempts pass through; the first failure reopens the
// breaker, BreakerProbeCount consecutive successes close it with the
// window reset.
//
// State reads and writes are short critical sections under a single lock;
// the breaker never blocks across an extraction.
type CircuitBreaker struct {
	strategy     tidepool.StrategyKind
	minFailures  int
	windowSize   int
	openDuration time.Duration
	probeCount   int
	logger       *slog.Logger
	publisher    tidepool.Publisher

	mu       sync.Mutex
	state    BreakerState
	window   []bool // outcome ring, true = failure
	failures int    // failures currently in window
	openedAt time.Time
	probes   int // consecutive half-open successes
	inflight int // half-open probes admitted but not yet recorded
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerLogger sets the breaker's logger. Defaults to slog.Default.
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(b *CircuitBreaker) { b.logger = logger }
}

// WithBreakerPublisher sets an event sink for breaker transitions.
func WithBreakerPublisher(pub tidepool.Publisher) BreakerOption {
	return func(b *CircuitBreaker) { b.publisher = pub }
}

// NewCircuitBreaker creates a closed breaker for the strategy using the
// pool config's breaker settings.
func NewCircuitBreaker(strategy tidepool.StrategyKind, cfg tidepool.PoolConfig, opts ...BreakerOption) *CircuitBreaker {
	b := &CircuitBreaker{
		strategy:     strategy,
		minFailures:  int(math.Ceil(cfg.BreakerThreshold * float64(cfg.BreakerWindowSize))),
		windowSize:   cfg.BreakerWindowSize,
		openDuration: cfg.BreakerOpenDuration,
		probeCount:   cfg.BreakerProbeCount,
		logger:       slog.Default(),
		window:       make([]bool, 0, cfg.BreakerWindowSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether an attempt may proceed. An open breaker whose
// open duration has elapsed transitions to half-open and admits the call
// as a probe. At most BreakerProbeCount probes are outstanding at once
// while half-open, counting both recorded successes and attempts still
// in flight, so concurrent callers cannot flood a recovering strategy.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probes+b.inflight >= b.probeCount {
			return false
		}
		b.inflight++
		return true
	case StateOpen:
		if time.Since(b.openedAt) < b.openDuration {
			return false
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.inflight = 1
		b.logger.Info("circuit breaker half-open", "strategy", b.strategy)
		b.publish(tidepool.EventBreakerHalfOpen)
		return true
	}
	return false
}

// Forget releases an admitted probe slot for an attempt that was
// abandoned before producing an outcome, e.g. when the pool turned out
// to be exhausted. No-op outside half-open.
func (b *CircuitBreaker) Forget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.inflight > 0 {
		b.inflight--
	}
}

// Record feeds one attempt outcome into the breaker.
func (b *CircuitBreaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.push(!success)
		if b.failures >= b.minFailures {
			b.open()
		}
	case StateHalfOpen:
		if b.inflight > 0 {
			b.inflight--
		}
		if !success {
			b.open()
			return
		}
		b.probes++
		if b.probes >= b.probeCount {
			b.state = StateClosed
			b.window = b.window[:0]
			b.failures = 0
			b.logger.Info("circuit breaker closed", "strategy", b.strategy)
			b.publish(tidepool.EventBreakerClosed)
		}
	case StateOpen:
		// Outcomes from attempts that started before the breaker opened
		// carry no new information.
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// push appends an outcome to the rolling window, evicting the oldest
// when the window is full. Must be called with mu held.
func (b *CircuitBreaker) push(failure bool) {
	if len(b.window) == b.windowSize {
		if b.window[0] {
			b.failures--
		}
		copy(b.window, b.window[1:])
		b.window = b.window[:len(b.window)-1]
	}
	b.window = append(b.window, failure)
	if failure {
		b.failures++
	}
}

// open transitions to Open and resets the recovery timer.
// Must be called with mu held.
func (b *CircuitBreaker) open() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.probes = 0
	b.inflight = 0
	b.window = b.window[:0]
	b.failures = 0
	b.logger.Warn("circuit breaker opened", "strategy", b.strategy)
	b.publish(tidepool.EventBreakerOpened)
}

func (b *CircuitBreaker) publish(t tidepool.EventType) {
	if b.publisher == nil {
		return
	}
	b.publisher.Publish(tidepool.Event{
		Type:      t,
		Strategy:  b.strategy,
		Timestamp: time.Now(),
	})
}
