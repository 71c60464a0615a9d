package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/mock"
	"github.com/fwojciec/tidepool/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitor_RetiresStaleIdleInstances(t *testing.T) {
	t.Parallel()

	// The first instance's memory grows while it sits idle; replacements
	// stay small. The sweep must observe the idle growth and retire it
	// without any extraction happening.
	var firstMemory atomic.Uint64
	firstMemory.Store(1 << 20)
	var created atomic.Int64

	strategy := &mock.Strategy{
		KindFn: func() tidepool.StrategyKind { return tidepool.StrategyBrowser },
		NewInstanceFn: func(ctx context.Context) (tidepool.Instance, error) {
			n := created.Add(1)
			return &mock.Instance{
				ExtractFn: func(ctx context.Context, content []byte, url string) (*tidepool.ExtractedDoc, error) {
					return &tidepool.ExtractedDoc{Text: "ok"}, nil
				},
				MemoryEstimateFn: func() uint64 {
					if n == 1 {
						return firstMemory.Load()
					}
					return 1 << 20
				},
			}, nil
		},
	}

	cfg := tidepool.DefaultPoolConfig()
	cfg.MaxPoolSize = 2
	cfg.InitialPoolSize = 1
	cfg.MemoryLimit = 2 << 20
	cfg.HealthCheckInterval = 5 * time.Millisecond

	p, err := pool.New(context.Background(), strategy, cfg)
	require.NoError(t, err)
	defer p.Close()

	// Park the instance, then bloat it while idle.
	firstMemory.Store(4 << 20)

	monitor := pool.NewHealthMonitor(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return created.Load() >= 2 && p.Status().Available >= 1
	}, time.Second, 5*time.Millisecond)

	// The replacement is healthy and reusable.
	inst, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, inst.IsHealthy(cfg))
	p.Release(inst, pool.Outcome{Success: true})
}

func TestHealthMonitor_RegrowsAfterRetirement(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	strategy := countingStrategy(tidepool.StrategyCSS, &created)

	cfg := tidepool.DefaultPoolConfig()
	cfg.MaxPoolSize = 4
	cfg.InitialPoolSize = 2
	cfg.MaxFailureCount = 1
	cfg.HealthCheckInterval = 5 * time.Millisecond

	p, err := pool.New(context.Background(), strategy, cfg)
	require.NoError(t, err)
	defer p.Close()

	// A failed extraction retires the instance immediately.
	inst, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(inst, pool.Outcome{Success: false})
	require.Equal(t, int64(1), created.Load())

	monitor := pool.NewHealthMonitor(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return p.Status().Available >= cfg.InitialPoolSize
	}, time.Second, 5*time.Millisecond)
}

func TestHealthMonitor_RegrowthRespectsCapacity(t *testing.T) {
	t.Parallel()

	// Regrowth and checkouts draw on the same capacity budget. With the
	// pool drained and a regrow creation in flight, concurrent Acquires
	// must not push the number of live instances past MaxPoolSize.
	gate := make(chan struct{})
	var gateOn atomic.Bool
	var alive, peak atomic.Int64

	strategy := &mock.Strategy{
		KindFn: func() tidepool.StrategyKind { return tidepool.StrategyWasm },
		NewInstanceFn: func(ctx context.Context) (tidepool.Instance, error) {
			n := alive.Add(1)
			for {
				prev := peak.Load()
				if n <= prev || peak.CompareAndSwap(prev, n) {
					break
				}
			}
			if gateOn.Load() {
				<-gate
			}
			return &mock.Instance{
				ExtractFn: func(ctx context.Context, content []byte, url string) (*tidepool.ExtractedDoc, error) {
					return &tidepool.ExtractedDoc{Text: "ok"}, nil
				},
				CloseFn: func() error {
					alive.Add(-1)
					return nil
				},
			}, nil
		},
	}

	cfg := tidepool.DefaultPoolConfig()
	cfg.MaxPoolSize = 2
	cfg.InitialPoolSize = 2
	cfg.MaxFailureCount = 1
	cfg.AcquireTimeout = 2 * time.Second
	cfg.HealthCheckInterval = 5 * time.Millisecond

	p, err := pool.New(context.Background(), strategy, cfg)
	require.NoError(t, err)
	defer p.Close()

	// Drain the pool: a failed extraction retires each warm instance.
	for range 2 {
		inst, err := p.Acquire(context.Background())
		require.NoError(t, err)
		p.Release(inst, pool.Outcome{Success: false})
	}
	require.Equal(t, int64(0), alive.Load())

	// All creations from here on stall until the gate opens.
	gateOn.Store(true)

	monitor := pool.NewHealthMonitor(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	// Wait for the regrow creation to be in flight.
	require.Eventually(t, func() bool {
		return alive.Load() >= 1
	}, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			p.Release(inst, pool.Outcome{Success: true})
		}()
	}

	// Give an over-eager pool time to start a third creation.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(cfg.MaxPoolSize),
		"live instances exceeded MaxPoolSize during regrowth")
}

func TestHealthMonitor_StopTerminatesSweeps(t *testing.T) {
	t.Parallel()

	var created atomic.Int64
	strategy := countingStrategy(tidepool.StrategyCSS, &created)

	cfg := tidepool.DefaultPoolConfig()
	cfg.InitialPoolSize = 1
	cfg.HealthCheckInterval = 5 * time.Millisecond

	p, err := pool.New(context.Background(), strategy, cfg)
	require.NoError(t, err)
	defer p.Close()

	monitor := pool.NewHealthMonitor(p, nil)
	monitor.Start(context.Background())
	monitor.Stop()

	// No panic, no further growth after stop with a drained pool.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), created.Load())
}
