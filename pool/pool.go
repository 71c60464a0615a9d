// Package pool provides bounded pooling of reusable extractor instances.
// Each strategy gets its own InstancePool with concurrency-limited
// checkout, lazy creation, health-based retirement, and a periodic
// HealthMonitor sweep.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/tidepool"
	"golang.org/x/sync/semaphore"
)

// Outcome describes a completed extraction attempt for bookkeeping.
type Outcome struct {
	Success  bool
	Timeout  bool
	Duration time.Duration
}

// InstancePool is a bounded collection of PooledInstances for one strategy.
// The number of instances alive at once (idle plus checked out) never
// exceeds the configured MaxPoolSize, and no instance is ever checked out
// twice concurrently.
//
// InstancePool is safe for concurrent use.
type InstancePool struct {
	strategy  tidepool.Strategy
	config    tidepool.PoolConfig
	logger    *slog.Logger
	publisher tidepool.Publisher

	// sem bounds concurrent checkouts; a permit is held for the duration
	// of each extraction. Holding a permit guarantees that either an idle
	// instance exists or there is room to create one.
	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []*PooledInstance // LIFO: most recently used on top
	live   int               // idle + checked out
	closed bool

	metrics poolMetrics
}

// Option configures an InstancePool.
type Option func(*InstancePool)

// WithLogger sets the pool's logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *InstancePool) { p.logger = logger }
}

// WithPublisher sets an event sink for instance lifecycle events.
func WithPublisher(pub tidepool.Publisher) Option {
	return func(p *InstancePool) { p.publisher = pub }
}

// New creates an InstancePool for the strategy and warms it up to the
// configured initial size. The config is validated first; an invalid
// config or a failed warm-up instance creation prevents the pool from
// starting.
func New(ctx context.Context, strategy tidepool.Strategy, config tidepool.PoolConfig, opts ...Option) (*InstancePool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &InstancePool{
		strategy: strategy,
		config:   config,
		logger:   slog.Default(),
		sem:      semaphore.NewWeighted(int64(config.MaxPoolSize)),
		idle:     make([]*PooledInstance, 0, config.MaxPoolSize),
	}
	for _, opt := range opts {
		opt(p)
	}

	for range config.InitialPoolSize {
		inst, err := p.createInstance(ctx)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.mu.Lock()
		p.idle = append(p.idle, inst)
		p.live++
		p.mu.Unlock()
	}

	p.logger.Info("instance pool initialized",
		"strategy", strategy.Kind(),
		"initial_size", config.InitialPoolSize,
		"max_size", config.MaxPoolSize,
	)
	return p, nil
}

// Strategy returns the strategy kind this pool serves.
func (p *InstancePool) Strategy() tidepool.StrategyKind {
	return p.strategy.Kind()
}

// Config returns the pool's immutable configuration.
func (p *InstancePool) Config() tidepool.PoolConfig {
	return p.config
}

// Acquire checks out an instance, preferring the most recently used idle
// instance to maximize warm-state reuse. If no idle instance is available
// and the pool is below capacity, a new instance is created. At capacity
// Acquire blocks up to AcquireTimeout for a checkout permit and then
// fails with EUNAVAILABLE (retryable).
//
// Every successful Acquire must be paired with exactly one Release.
func (p *InstancePool) Acquire(ctx context.Context) (*PooledInstance, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.publish(tidepool.Event{
				Type:     tidepool.EventPoolExhausted,
				Strategy: p.strategy.Kind(),
			})
			return nil, tidepool.Errorf(tidepool.EUNAVAILABLE, "%s pool exhausted", p.strategy.Kind())
		}
		return nil, err
	}

	// Pop the freshest healthy idle instance. Unhealthy idle instances
	// (e.g. memory growth while parked) are retired on the way.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, tidepool.Errorf(tidepool.EUNAVAILABLE, "%s pool closed", p.strategy.Kind())
	}
	for len(p.idle) > 0 {
		inst := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if inst.IsHealthy(p.config) {
			p.mu.Unlock()
			return inst, nil
		}
		p.live--
		p.mu.Unlock()
		p.retire(inst)
		p.mu.Lock()
	}
	// No idle instance. Holding a permit guarantees live < MaxPoolSize.
	p.live++
	p.mu.Unlock()

	inst, err := p.createInstance(ctx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, err
	}
	return inst, nil
}

// Release returns a checked-out instance after an extraction attempt.
// Counters are updated from the outcome; a timeout retires the instance
// conservatively since the engine may be left mid-operation. An instance
// that is no longer healthy is destroyed instead of returned, freeing
// capacity for a replacement.
func (p *InstancePool) Release(inst *PooledInstance, outcome Outcome) {
	inst.recordOutcome(outcome.Success)
	p.metrics.recordExtraction(outcome)

	reusable := !outcome.Timeout && inst.IsHealthy(p.config)

	p.mu.Lock()
	if reusable && !p.closed {
		p.idle = append(p.idle, inst)
		p.mu.Unlock()
		p.sem.Release(1)
		return
	}
	p.live--
	p.mu.Unlock()
	p.retire(inst)
	p.sem.Release(1)
}

// Status reports current instance accounting.
func (p *InstancePool) Status() tidepool.PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return tidepool.PoolStatus{
		Available: len(p.idle),
		Active:    p.live - len(p.idle),
		Max:       p.config.MaxPoolSize,
	}
}

// Snapshot returns a point-in-time copy of the pool's metrics.
// Safe to call concurrently with extractions; it never blocks a checkout
// for longer than the accounting mutex.
func (p *InstancePool) Snapshot() tidepool.PoolMetricsSnapshot {
	snap := p.metrics.snapshot()
	snap.Strategy = p.strategy.Kind()

	p.mu.Lock()
	snap.PoolSize = p.live
	snap.AvailableInstances = len(p.idle)
	snap.ActiveInstances = p.live - len(p.idle)
	p.mu.Unlock()
	return snap
}

// Close retires all idle instances and rejects further checkouts.
// Checked-out instances are retired as they are released.
func (p *InstancePool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.live -= len(idle)
	p.mu.Unlock()

	var err error
	for _, inst := range idle {
		if cerr := inst.close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// sweepIdle retires idle instances that are no longer healthy and returns
// how many were removed. Called by the HealthMonitor.
func (p *InstancePool) sweepIdle() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	var healthy, stale []*PooledInstance
	for _, inst := range p.idle {
		inst.refreshMemory()
		if inst.IsHealthy(p.config) {
			healthy = append(healthy, inst)
		} else {
			stale = append(stale, inst)
		}
	}
	p.idle = healthy
	p.live -= len(stale)
	p.mu.Unlock()

	for _, inst := range stale {
		p.retire(inst)
	}
	return len(stale)
}

// grow creates idle instances until the pool is back at its initial size.
// Called by the HealthMonitor after retirements have shrunk the pool.
// Each in-flight creation holds a checkout permit so that growth and
// acquirers never overshoot MaxPoolSize between them.
func (p *InstancePool) grow(ctx context.Context) error {
	for {
		if !p.sem.TryAcquire(1) {
			// Checkouts own all remaining capacity; they will create
			// replacements themselves as needed.
			return nil
		}

		p.mu.Lock()
		if p.closed || p.live >= p.config.InitialPoolSize {
			p.mu.Unlock()
			p.sem.Release(1)
			return nil
		}
		p.live++
		p.mu.Unlock()

		inst, err := p.createInstance(ctx)
		if err != nil {
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
			p.sem.Release(1)
			return err
		}

		p.mu.Lock()
		if p.closed {
			p.live--
			p.mu.Unlock()
			p.sem.Release(1)
			p.retire(inst)
			return nil
		}
		p.idle = append(p.idle, inst)
		p.mu.Unlock()
		p.sem.Release(1)
	}
}

// createInstance builds a new pooled instance. Creation runs outside the
// pool lock; it may be expensive (compiling a module, launching a browser).
func (p *InstancePool) createInstance(ctx context.Context) (*PooledInstance, error) {
	engine, err := p.strategy.NewInstance(ctx)
	if err != nil {
		p.metrics.recordCreationFailure()
		return nil, tidepool.Errorf(tidepool.EINTERNAL, "creating %s instance: %v", p.strategy.Kind(), err)
	}
	inst := newPooledInstance(p.strategy.Kind(), engine)
	p.metrics.recordCreated()
	p.logger.Debug("instance created", "strategy", inst.kind, "instance_id", inst.id)
	p.publish(tidepool.Event{
		Type:       tidepool.EventInstanceCreated,
		Strategy:   inst.kind,
		InstanceID: inst.id,
	})
	return inst, nil
}

// retire destroys an instance. Pool accounting must already be decremented.
func (p *InstancePool) retire(inst *PooledInstance) {
	if err := inst.close(); err != nil {
		p.logger.Warn("closing retired instance",
			"strategy", inst.kind,
			"instance_id", inst.id,
			"error", err,
		)
	}
	p.metrics.recordRetired()
	p.logger.Debug("instance retired",
		"strategy", inst.kind,
		"instance_id", inst.id,
		"use_count", inst.useCount,
		"failure_count", inst.failureCount,
	)
	p.publish(tidepool.Event{
		Type:       tidepool.EventInstanceRetired,
		Strategy:   inst.kind,
		InstanceID: inst.id,
	})
}

func (p *InstancePool) publish(event tidepool.Event) {
	if p.publisher == nil {
		return
	}
	event.Timestamp = time.Now()
	p.publisher.Publish(event)
}
