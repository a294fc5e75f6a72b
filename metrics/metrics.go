// ABOUTME: Prometheus collectors for the graph engine, its inbound streams and its SSE subscribers.
// ABOUTME: Each Metrics owns a private registry so several engines can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389-research/playgraph/graph"
)

const namespace = "playgraph"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsApplied   *prometheus.CounterVec
	EventsIgnored   prometheus.Counter
	ApplyDuration   *prometheus.HistogramVec
	RecordsDropped  *prometheus.CounterVec
	IngestErrors    prometheus.Counter
	EdgeFallbacks   prometheus.Counter
	GraphSize       *prometheus.GaugeVec
	StreamConnected *prometheus.GaugeVec
	StreamReconnect *prometheus.CounterVec
	Subscribers     prometheus.Gauge
	ChangesMissed   prometheus.Counter
}

// New creates the collectors and registers them, with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "applied_total",
			Help:      "Inbound events applied, by event type",
		}, []string{"type"}),

		EventsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ignored_total",
			Help:      "Inbound events skipped because their type is not recognized",
		}),

		ApplyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying one event to the store",
			Buckets:   []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"type"}),

		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "dropped_total",
			Help:      "Inbound node and edge records not admitted, by record kind and reason",
		}, []string{"record", "reason"}),

		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "malformed_total",
			Help:      "Ingestion calls rejected as structurally invalid",
		}),

		EdgeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edges",
			Name:      "fallback_total",
			Help:      "Edge replacements where nothing validated and the structural fallback was used",
		}),

		GraphSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "size",
			Help:      "Current collection sizes (nodes, edges, visible_nodes, visible_edges, excluded, selected)",
		}, []string{"collection"}),

		StreamConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "Live stream connection status (0=disconnected, 1=connected)",
		}, []string{"kind"}),

		StreamReconnect: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Live stream reconnection attempts",
		}, []string{"kind"}),

		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "subscribers",
			Help:      "Connected change-stream subscribers",
		}),

		ChangesMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "changes_missed_total",
			Help:      "Changes not delivered to a subscriber whose buffer was full",
		}),
	}

	m.registry.MustRegister(
		m.EventsApplied, m.EventsIgnored, m.ApplyDuration, m.RecordsDropped,
		m.IngestErrors, m.EdgeFallbacks, m.GraphSize,
		m.StreamConnected, m.StreamReconnect, m.Subscribers, m.ChangesMissed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordEvent counts one applied event and its duration.
func (m *Metrics) RecordEvent(eventType string, d time.Duration) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(eventType).Inc()
	m.ApplyDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

// RecordIgnored counts an event of unknown type.
func (m *Metrics) RecordIgnored() {
	if m == nil {
		return
	}
	m.EventsIgnored.Inc()
}

// RecordDropped counts n records of kind ("node" or "edge") dropped for reason.
func (m *Metrics) RecordDropped(record, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsDropped.WithLabelValues(record, reason).Add(float64(n))
}

// RecordMalformed counts a structurally invalid ingestion.
func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.IngestErrors.Inc()
}

// RecordFallback counts a structural-fallback edge replacement.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.EdgeFallbacks.Inc()
}

// ObserveGraph publishes the store's collection sizes.
func (m *Metrics) ObserveGraph(s graph.Stats) {
	if m == nil {
		return
	}
	m.GraphSize.WithLabelValues("nodes").Set(float64(s.Nodes))
	m.GraphSize.WithLabelValues("edges").Set(float64(s.Edges))
	m.GraphSize.WithLabelValues("visible_nodes").Set(float64(s.VisibleNodes))
	m.GraphSize.WithLabelValues("visible_edges").Set(float64(s.VisibleEdges))
	m.GraphSize.WithLabelValues("excluded").Set(float64(s.Excluded))
	m.GraphSize.WithLabelValues("selected").Set(float64(s.Selected))
}

// SetStreamConnected records whether the stream of the given kind is up.
func (m *Metrics) SetStreamConnected(kind string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.StreamConnected.WithLabelValues(kind).Set(v)
}

// RecordReconnect counts a reconnection attempt for the stream kind.
func (m *Metrics) RecordReconnect(kind string) {
	if m == nil {
		return
	}
	m.StreamReconnect.WithLabelValues(kind).Inc()
}

// AddSubscribers adjusts the SSE subscriber gauge by delta.
func (m *Metrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.Subscribers.Add(float64(delta))
}

// RecordMissedChange counts one change a slow subscriber did not receive.
func (m *Metrics) RecordMissedChange() {
	if m == nil {
		return
	}
	m.ChangesMissed.Inc()
}
