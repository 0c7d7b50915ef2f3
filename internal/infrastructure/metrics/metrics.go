package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the simulator.
//
// Degraded-mode conditions (scheduling lag, subscriber overflow,
// persistence failures) surface here rather than as errors: the simulation
// keeps running and operators watch the counters.
type Metrics struct {
	registry *prometheus.Registry

	// TicksTotal counts ticks executed, per device kind.
	TicksTotal *prometheus.CounterVec

	// TickDuration observes how long a single tick takes, including
	// publish, per device kind.
	TickDuration *prometheus.HistogramVec

	// SchedulingLag observes how far behind nominal time each tick fired.
	SchedulingLag prometheus.Histogram

	// SchedulingOverruns counts ticks that fired later than the
	// configured lag threshold.
	SchedulingOverruns prometheus.Counter

	// DevicesRunning tracks the number of device tasks currently running.
	DevicesRunning prometheus.Gauge

	// ReadingsDropped counts readings discarded because a subscriber's
	// buffer was full, per subscriber label.
	ReadingsDropped *prometheus.CounterVec

	// Subscribers tracks the number of attached telemetry subscribers.
	Subscribers prometheus.Gauge

	// PersistenceFailures counts readings that a sink failed to persist.
	PersistenceFailures *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry, so tests can
// construct as many as they like without duplicate-registration panics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetsim",
			Name:      "ticks_total",
			Help:      "Number of device ticks executed.",
		}, []string{"kind"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fleetsim",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a device tick including telemetry publish.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"kind"}),
		SchedulingLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fleetsim",
			Name:      "scheduling_lag_seconds",
			Help:      "How far behind nominal time each tick fired.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		SchedulingOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetsim",
			Name:      "scheduling_overruns_total",
			Help:      "Ticks that fired later than the configured lag threshold.",
		}),
		DevicesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetsim",
			Name:      "devices_running",
			Help:      "Device simulation tasks currently running.",
		}),
		ReadingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetsim",
			Name:      "readings_dropped_total",
			Help:      "Readings discarded because a subscriber buffer was full.",
		}, []string{"subscriber"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetsim",
			Name:      "telemetry_subscribers",
			Help:      "Attached telemetry subscribers.",
		}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetsim",
			Name:      "persistence_failures_total",
			Help:      "Readings a persistence sink failed to store.",
		}, []string{"sink"}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDuration,
		m.SchedulingLag,
		m.SchedulingOverruns,
		m.DevicesRunning,
		m.ReadingsDropped,
		m.Subscribers,
		m.PersistenceFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
