package prometheus_test

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/tidepool"
	tidepoolprom "github.com/fwojciec/tidepool/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSource returns fixed snapshots.
type staticSource struct {
	snaps []tidepool.PoolMetricsSnapshot
}

func (s *staticSource) Snapshots() []tidepool.PoolMetricsSnapshot {
	return s.snaps
}

func testSource() *staticSource {
	return &staticSource{
		snaps: []tidepool.PoolMetricsSnapshot{
			{
				Strategy:            tidepool.StrategyCSS,
				TotalExtractions:    10,
				Successful:          8,
				Failed:              2,
				TimeoutCount:        1,
				AvgDuration:         250 * time.Millisecond,
				ActiveInstances:     1,
				AvailableInstances:  2,
				InstancesCreated:    4,
				InstancesRetired:    1,
				CircuitBreakerState: "closed",
			},
			{
				Strategy:            tidepool.StrategyBrowser,
				CircuitBreakerState: "open",
			},
		},
	}
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, tidepoolprom.WriteText(&buf, testSource()))
	output := buf.String()

	assert.Contains(t, output, `pool_extractions_total{status="success",strategy="css"} 8`)
	assert.Contains(t, output, `pool_extractions_total{status="failure",strategy="css"} 2`)
	assert.Contains(t, output, `pool_extraction_duration_seconds{strategy="css"} 0.25`)
	assert.Contains(t, output, `pool_instances{state="active",strategy="css"} 1`)
	assert.Contains(t, output, `pool_instances{state="available",strategy="css"} 2`)
	assert.Contains(t, output, `pool_timeout_count{strategy="css"} 1`)
	assert.Contains(t, output, `circuit_breaker_state{strategy="css"} 0`)
	assert.Contains(t, output, `circuit_breaker_state{strategy="browser"} 1`)
	assert.Contains(t, output, `pool_instances_created_total{strategy="css"} 4`)
	assert.Contains(t, output, `pool_instances_retired_total{strategy="css"} 1`)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	handler := tidepoolprom.Handler(testSource())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "pool_extractions_total")
}

func TestBreakerGaugeEncoding(t *testing.T) {
	t.Parallel()

	source := &staticSource{
		snaps: []tidepool.PoolMetricsSnapshot{
			{Strategy: tidepool.StrategyWasm, CircuitBreakerState: "half_open"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, tidepoolprom.WriteText(&buf, source))
	assert.Contains(t, buf.String(), `circuit_breaker_state{strategy="wasm"} 2`)
}
