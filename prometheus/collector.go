// Package prometheus exposes pool and circuit breaker metrics in
// Prometheus exposition format.
package prometheus

import (
	"io"
	"net/http"

	"github.com/fwojciec/tidepool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Ensure Collector implements prometheus.Collector at compile time.
var _ prometheus.Collector = (*Collector)(nil)

// Circuit breaker states encoded as gauge values.
const (
	gaugeClosed   = 0
	gaugeOpen     = 1
	gaugeHalfOpen = 2
)

var (
	extractionsDesc = prometheus.NewDesc(
		"pool_extractions_total",
		"Total extractions processed, by strategy and outcome.",
		[]string{"strategy", "status"}, nil,
	)
	durationDesc = prometheus.NewDesc(
		"pool_extraction_duration_seconds",
		"Mean extraction duration in seconds, by strategy.",
		[]string{"strategy"}, nil,
	)
	instancesDesc = prometheus.NewDesc(
		"pool_instances",
		"Current instances by strategy and state.",
		[]string{"strategy", "state"}, nil,
	)
	breakerDesc = prometheus.NewDesc(
		"circuit_breaker_state",
		"Circuit breaker state by strategy (0=closed, 1=open, 2=half_open).",
		[]string{"strategy"}, nil,
	)
	timeoutsDesc = prometheus.NewDesc(
		"pool_timeout_count",
		"Total extraction timeouts, by strategy.",
		[]string{"strategy"}, nil,
	)
	createdDesc = prometheus.NewDesc(
		"pool_instances_created_total",
		"Total instances created, by strategy.",
		[]string{"strategy"}, nil,
	)
	retiredDesc = prometheus.NewDesc(
		"pool_instances_retired_total",
		"Total instances retired, by strategy.",
		[]string{"strategy"}, nil,
	)
)

// Collector adapts a tidepool.MetricsSource to the Prometheus collector
// interface. Metrics are produced on the fly from pool snapshots, so
// registering a Collector adds no bookkeeping to the extraction path.
type Collector struct {
	source tidepool.MetricsSource
}

// NewCollector creates a collector reading from source.
func NewCollector(source tidepool.MetricsSource) *Collector {
	return &Collector{source: source}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- extractionsDesc
	ch <- durationDesc
	ch <- instancesDesc
	ch <- breakerDesc
	ch <- timeoutsDesc
	ch <- createdDesc
	ch <- retiredDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.Snapshots() {
		strategy := string(s.Strategy)

		ch <- prometheus.MustNewConstMetric(extractionsDesc, prometheus.CounterValue,
			float64(s.Successful), strategy, "success")
		ch <- prometheus.MustNewConstMetric(extractionsDesc, prometheus.CounterValue,
			float64(s.Failed), strategy, "failure")
		ch <- prometheus.MustNewConstMetric(durationDesc, prometheus.GaugeValue,
			s.AvgDuration.Seconds(), strategy)
		ch <- prometheus.MustNewConstMetric(instancesDesc, prometheus.GaugeValue,
			float64(s.ActiveInstances), strategy, "active")
		ch <- prometheus.MustNewConstMetric(instancesDesc, prometheus.GaugeValue,
			float64(s.AvailableInstances), strategy, "available")
		ch <- prometheus.MustNewConstMetric(breakerDesc, prometheus.GaugeValue,
			breakerGauge(s.CircuitBreakerState), strategy)
		ch <- prometheus.MustNewConstMetric(timeoutsDesc, prometheus.CounterValue,
			float64(s.TimeoutCount), strategy)
		ch <- prometheus.MustNewConstMetric(createdDesc, prometheus.CounterValue,
			float64(s.InstancesCreated), strategy)
		ch <- prometheus.MustNewConstMetric(retiredDesc, prometheus.CounterValue,
			float64(s.InstancesRetired), strategy)
	}
}

func breakerGauge(state string) float64 {
	switch state {
	case "open":
		return gaugeOpen
	case "half_open":
		return gaugeHalfOpen
	default:
		return gaugeClosed
	}
}

// NewRegistry creates a registry holding only the collector for source.
func NewRegistry(source tidepool.MetricsSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(source))
	return reg
}

// Handler serves the metrics for source over HTTP.
func Handler(source tidepool.MetricsSource) http.Handler {
	return promhttp.HandlerFor(NewRegistry(source), promhttp.HandlerOpts{})
}

// WriteText gathers from source and writes the metrics in text
// exposition format. Used for one-shot dumps outside an HTTP server.
func WriteText(w io.Writer, source tidepool.MetricsSource) error {
	families, err := NewRegistry(source).Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, fam := range families {
		if err := enc.Encode(fam); err != nil {
			return err
		}
	}
	return nil
}
