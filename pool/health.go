package pool

import (
	"context"
	"log/slog"
	"time"
)

// HealthMonitor periodically sweeps a pool's idle instances, retiring any
// that fail their health check, and regrows the pool toward its initial
// size. The sweep catches slow degradation (e.g. memory growth while an
// instance sits idle) that release-time checks miss between uses.
type HealthMonitor struct {
	pool     *InstancePool
	interval time.Duration
	logger   *slog.Logger
	doneCh   chan struct{}
}

// NewHealthMonitor creates a monitor for the pool using the pool's
// configured health check interval.
func NewHealthMonitor(p *InstancePool, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		pool:     p,
		interval: p.config.HealthCheckInterval,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep in a goroutine. The monitor stops when
// the context is canceled or Stop is called.
func (m *HealthMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sweep(ctx)
			case <-ctx.Done():
				return
			case <-m.doneCh:
				return
			}
		}
	}()
}

// Stop terminates the monitor goroutine.
func (m *HealthMonitor) Stop() {
	close(m.doneCh)
}

// sweep runs one health pass: evict unhealthy idle instances, then grow
// back toward the initial pool size.
func (m *HealthMonitor) sweep(ctx context.Context) {
	retired := m.pool.sweepIdle()
	if retired > 0 {
		m.logger.Info("health sweep retired instances",
			"strategy", m.pool.Strategy(),
			"retired", retired,
		)
	}
	if err := m.pool.grow(ctx); err != nil {
		m.logger.Warn("health sweep pool growth failed",
			"strategy", m.pool.Strategy(),
			"error", err,
		)
	}
}
