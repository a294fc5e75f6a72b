// ABOUTME: Tests for the engine collectors and their exposition handler.
package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/2389-research/playgraph/graph"
	"github.com/2389-research/playgraph/metrics"
)

func TestRecordEventAndDrops(t *testing.T) {
	m := metrics.New()
	m.RecordEvent("nodes_added", time.Millisecond)
	m.RecordEvent("nodes_added", time.Millisecond)
	m.RecordDropped("edge", "dangling", 3)
	m.RecordDropped("edge", "dangling", 0)

	if got := testutil.ToFloat64(m.EventsApplied.WithLabelValues("nodes_added")); got != 2 {
		t.Errorf("applied: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordsDropped.WithLabelValues("edge", "dangling")); got != 3 {
		t.Errorf("dropped: got %v, want 3", got)
	}
}

func TestObserveGraph(t *testing.T) {
	m := metrics.New()
	m.ObserveGraph(graph.Stats{Nodes: 5, Edges: 4, VisibleNodes: 3})

	if got := testutil.ToFloat64(m.GraphSize.WithLabelValues("nodes")); got != 5 {
		t.Errorf("nodes: got %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.GraphSize.WithLabelValues("visible_nodes")); got != 3 {
		t.Errorf("visible_nodes: got %v, want 3", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.RecordEvent("snapshot", time.Second)
	m.RecordIgnored()
	m.RecordDropped("node", "unsupported_kind", 1)
	m.RecordMalformed()
	m.RecordFallback()
	m.ObserveGraph(graph.Stats{})
	m.SetStreamConnected("nats", true)
	m.RecordReconnect("nats")
	m.AddSubscribers(1)
	m.RecordMissedChange()
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := metrics.New()
	m.RecordIgnored()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), "playgraph_events_ignored_total 1") {
		t.Errorf("exposition missing ignored counter:\n%s", body)
	}
}
