package tidepool

import "time"

// PoolStatus reports instance accounting for one strategy's pool.
type PoolStatus struct {
	Available int
	Active    int
	Max       int
}

// PoolMetricsSnapshot is a consistent point-in-time copy of one pool's
// counters and its breaker state. Snapshots are produced by copying
// counters under brief locks and never block an extraction in flight.
type PoolMetricsSnapshot struct {
	Strategy            StrategyKind  `json:"strategy"`
	TotalExtractions    uint64        `json:"totalExtractions"`
	Successful          uint64        `json:"successful"`
	Failed              uint64        `json:"failed"`
	TimeoutCount        uint64        `json:"timeoutCount"`
	AvgDuration         time.Duration `json:"avgDuration"`
	PoolSize            int           `json:"poolSize"`
	ActiveInstances     int           `json:"activeInstances"`
	AvailableInstances  int           `json:"availableInstances"`
	InstancesCreated    uint64        `json:"instancesCreated"`
	InstancesRetired    uint64        `json:"instancesRetired"`
	CircuitBreakerState string        `json:"circuitBreakerState"`
}

// MetricsSource provides per-strategy metrics snapshots for external
// health and metrics endpoints.
type MetricsSource interface {
	// Snapshots returns one snapshot per configured strategy.
	Snapshots() []PoolMetricsSnapshot
}
