package tidepool

import "time"

// Pool configuration defaults. These match the sizing the extraction
// pipeline was tuned with: small warm pools, generous reuse, and a
// breaker that trips at a 50% failure rate over the last ten attempts.
const (
	DefaultMaxPoolSize         = 8
	DefaultInitialPoolSize     = 2
	DefaultExtractionTimeout   = 30 * time.Second
	DefaultAcquireTimeout      = 5 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultMemoryLimit         = 256 << 20 // 256MB per instance
	DefaultMaxInstanceReuse    = 1000
	DefaultMaxFailureCount     = 10
	DefaultBreakerThreshold    = 0.5
	DefaultBreakerWindowSize   = 10
	DefaultBreakerOpenDuration = 5 * time.Second
	DefaultBreakerProbeCount   = 3
)

// PoolConfig configures one strategy's instance pool and circuit breaker.
// A PoolConfig is immutable once the pool is constructed.
type PoolConfig struct {
	// MaxPoolSize bounds the number of instances alive at once
	// (idle plus checked out).
	MaxPoolSize int

	// InitialPoolSize is the number of instances created eagerly during
	// warm-up, and the size the health monitor regrows the pool toward.
	InitialPoolSize int

	// ExtractionTimeout bounds a single extraction attempt.
	ExtractionTimeout time.Duration

	// AcquireTimeout bounds the wait for a free instance when the pool
	// is at capacity.
	AcquireTimeout time.Duration

	// HealthCheckInterval is the period between health monitor sweeps.
	HealthCheckInterval time.Duration

	// MemoryLimit is the per-instance memory ceiling in bytes.
	// Zero disables the memory check.
	MemoryLimit uint64

	// MaxInstanceReuse is the number of uses before an instance is
	// retired and recreated.
	MaxInstanceReuse int

	// MaxFailureCount is the number of failures before an instance is
	// retired.
	MaxFailureCount int

	// BreakerThreshold is the failure ratio within the rolling window at
	// which the circuit breaker opens. Expressed as a ratio in (0, 1].
	BreakerThreshold float64

	// BreakerWindowSize is the rolling window sample size.
	BreakerWindowSize int

	// BreakerOpenDuration is how long the breaker stays open before
	// allowing half-open probes.
	BreakerOpenDuration time.Duration

	// BreakerProbeCount is the number of consecutive half-open probe
	// successes required to close the breaker.
	BreakerProbeCount int
}

// DefaultPoolConfig returns a PoolConfig with default values.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxPoolSize:         DefaultMaxPoolSize,
		InitialPoolSize:     DefaultInitialPoolSize,
		ExtractionTimeout:   DefaultExtractionTimeout,
		AcquireTimeout:      DefaultAcquireTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
		MemoryLimit:         DefaultMemoryLimit,
		MaxInstanceReuse:    DefaultMaxInstanceReuse,
		MaxFailureCount:     DefaultMaxFailureCount,
		BreakerThreshold:    DefaultBreakerThreshold,
		BreakerWindowSize:   DefaultBreakerWindowSize,
		BreakerOpenDuration: DefaultBreakerOpenDuration,
		BreakerProbeCount:   DefaultBreakerProbeCount,
	}
}

// Validate returns an error if the configuration is invalid.
// Construction must fail on an invalid config; pools never start with one.
func (c PoolConfig) Validate() error {
	if c.MaxPoolSize <= 0 {
		return Errorf(EINVALID, "max pool size must be greater than 0")
	}
	if c.InitialPoolSize < 0 || c.InitialPoolSize > c.MaxPoolSize {
		return Errorf(EINVALID, "initial pool size must be between 0 and max pool size")
	}
	if c.ExtractionTimeout <= 0 {
		return Errorf(EINVALID, "extraction timeout must be positive")
	}
	if c.AcquireTimeout <= 0 {
		return Errorf(EINVALID, "acquire timeout must be positive")
	}
	if c.HealthCheckInterval <= 0 {
		return Errorf(EINVALID, "health check interval must be positive")
	}
	if c.MaxInstanceReuse <= 0 {
		return Errorf(EINVALID, "max instance reuse must be greater than 0")
	}
	if c.MaxFailureCount <= 0 {
		return Errorf(EINVALID, "max failure count must be greater than 0")
	}
	if c.BreakerThreshold <= 0 || c.BreakerThreshold > 1 {
		return Errorf(EINVALID, "breaker threshold must be in (0, 1]")
	}
	if c.BreakerWindowSize <= 0 {
		return Errorf(EINVALID, "breaker window size must be greater than 0")
	}
	if c.BreakerOpenDuration <= 0 {
		return Errorf(EINVALID, "breaker open duration must be positive")
	}
	if c.BreakerProbeCount <= 0 {
		return Errorf(EINVALID, "breaker probe count must be greater than 0")
	}
	return nil
}
