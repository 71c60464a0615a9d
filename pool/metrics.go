package pool

import (
	"sync"
	"time"

	"github.com/fwojciec/tidepool"
)

// poolMetrics accumulates extraction counters for one pool.
// All fields are guarded by mu; critical sections only copy or increment,
// so snapshots never block an extraction attempt.
type poolMetrics struct {
	mu               sync.Mutex
	total            uint64
	successful       uint64
	failed           uint64
	timeouts         uint64
	durationTotal    time.Duration
	created          uint64
	retired          uint64
	creationFailures uint64
}

func (m *poolMetrics) recordExtraction(outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	if outcome.Success {
		m.successful++
	} else {
		m.failed++
	}
	if outcome.Timeout {
		m.timeouts++
	}
	m.durationTotal += outcome.Duration
}

func (m *poolMetrics) recordCreated() {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
}

func (m *poolMetrics) recordRetired() {
	m.mu.Lock()
	m.retired++
	m.mu.Unlock()
}

func (m *poolMetrics) recordCreationFailure() {
	m.mu.Lock()
	m.creationFailures++
	m.mu.Unlock()
}

func (m *poolMetrics) snapshot() tidepool.PoolMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg time.Duration
	if m.total > 0 {
		avg = m.durationTotal / time.Duration(m.total)
	}
	return tidepool.PoolMetricsSnapshot{
		TotalExtractions: m.total,
		Successful:       m.successful,
		Failed:           m.failed,
		TimeoutCount:     m.timeouts,
		AvgDuration:      avg,
		InstancesCreated: m.created,
		InstancesRetired: m.retired,
	}
}
