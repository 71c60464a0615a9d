package pool

import (
	"context"
	"time"

	"github.com/fwojciec/tidepool"
	"github.com/google/uuid"
)

// PooledInstance is a single reusable extractor handle for one strategy.
// It is owned exclusively by its pool except while checked out to exactly
// one in-flight extraction, so the counters need no locking of their own.
type PooledInstance struct {
	id             string
	kind           tidepool.StrategyKind
	engine         tidepool.Instance
	useCount       int
	failureCount   int
	createdAt      time.Time
	lastUsedAt     time.Time
	memoryEstimate uint64
}

func newPooledInstance(kind tidepool.StrategyKind, engine tidepool.Instance) *PooledInstance {
	now := time.Now()
	return &PooledInstance{
		id:             uuid.New().String(),
		kind:           kind,
		engine:         engine,
		createdAt:      now,
		lastUsedAt:     now,
		memoryEstimate: engine.MemoryEstimate(),
	}
}

// ID returns the instance's unique identifier within its pool.
func (i *PooledInstance) ID() string { return i.id }

// Kind returns the strategy kind this instance belongs to.
func (i *PooledInstance) Kind() tidepool.StrategyKind { return i.kind }

// UseCount returns the number of completed extractions, successful or not.
func (i *PooledInstance) UseCount() int { return i.useCount }

// FailureCount returns the number of failed extractions.
func (i *PooledInstance) FailureCount() int { return i.failureCount }

// MemoryEstimate returns the engine's resident size as of the last release.
func (i *PooledInstance) MemoryEstimate() uint64 { return i.memoryEstimate }

// Extract runs one extraction on the underlying engine.
func (i *PooledInstance) Extract(ctx context.Context, content []byte, url string) (*tidepool.ExtractedDoc, error) {
	return i.engine.Extract(ctx, content, url)
}

// IsHealthy reports whether the instance may be reused. It is a pure
// function of the config and the instance's counters: deterministic,
// no side effects, safe to call concurrently.
func (i *PooledInstance) IsHealthy(cfg tidepool.PoolConfig) bool {
	if i.useCount >= cfg.MaxInstanceReuse {
		return false
	}
	if i.failureCount >= cfg.MaxFailureCount {
		return false
	}
	if cfg.MemoryLimit > 0 && i.memoryEstimate > cfg.MemoryLimit {
		return false
	}
	return true
}

// recordOutcome updates the usage counters after a completed extraction.
// Must only be called by the owning pool during release.
func (i *PooledInstance) recordOutcome(success bool) {
	i.useCount++
	if !success {
		i.failureCount++
	}
	i.lastUsedAt = time.Now()
	i.memoryEstimate = i.engine.MemoryEstimate()
}

// refreshMemory re-reads the engine's resident size. Called by the pool
// for parked instances so idle memory growth is observed between uses.
func (i *PooledInstance) refreshMemory() {
	i.memoryEstimate = i.engine.MemoryEstimate()
}

// close releases the underlying engine resource.
func (i *PooledInstance) close() error {
	return i.engine.Close()
}
