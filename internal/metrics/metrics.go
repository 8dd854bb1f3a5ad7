// Package metrics exposes collector counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/hostwatch/collector/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "hostwatch_"

// Metrics owns a private registry so that several collectors (or tests)
// can coexist in one process. It implements pipeline.Recorder and
// monitor.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	eventsQueued  *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	eventsWritten *prometheus.CounterVec
	sinkFailures  *prometheus.CounterVec

	cycleFailures *prometheus.CounterVec
	tracked       *prometheus.GaugeVec
	watcherUp     *prometheus.GaugeVec
}

// New creates and registers all collector metrics, together with the
// standard Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsQueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_queued_total",
				Help: "Events accepted into the pipeline queue by type",
			},
			[]string{"event_type"},
		),
		eventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_dropped_total",
				Help: "Events dropped because the pipeline queue was full or closed",
			},
			[]string{"event_type"},
		),
		eventsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_written_total",
				Help: "Events written to the output stream by type",
			},
			[]string{"event_type"},
		),
		sinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sink_failures_total",
				Help: "Events the aggregator failed to serialize or write",
			},
			[]string{"reason"},
		),
		cycleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "watcher_cycle_failures_total",
				Help: "Poll cycles skipped because the OS source could not be read",
			},
			[]string{"watcher"},
		),
		tracked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "watcher_tracked",
				Help: "Entries in a watcher's previously-seen set",
			},
			[]string{"watcher"},
		),
		watcherUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "watcher_up",
				Help: "Whether a watcher is running (1) or has stopped (0)",
			},
			[]string{"watcher"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsQueued,
		m.eventsDropped,
		m.eventsWritten,
		m.sinkFailures,
		m.cycleFailures,
		m.tracked,
		m.watcherUp,
	)

	// Pre-create label values so every series is exported from the start.
	for _, t := range telemetry.Types() {
		m.eventsQueued.WithLabelValues(string(t))
		m.eventsDropped.WithLabelValues(string(t))
		m.eventsWritten.WithLabelValues(string(t))
	}
	return m
}

// Registry returns the registry backing the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) EventQueued(t telemetry.EventType) {
	m.eventsQueued.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) EventDropped(t telemetry.EventType) {
	m.eventsDropped.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) EventWritten(t telemetry.EventType) {
	m.eventsWritten.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) SinkFailure(reason string) {
	m.sinkFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CycleFailed(watcher string) {
	m.cycleFailures.WithLabelValues(watcher).Inc()
}

func (m *Metrics) Tracked(watcher string, n int) {
	m.tracked.WithLabelValues(watcher).Set(float64(n))
}

func (m *Metrics) WatcherUp(watcher string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.watcherUp.WithLabelValues(watcher).Set(v)
}
