// ABOUTME: Tests for Engine.Apply over every event type, malformed payloads, unknown types and route cascade.
package engine_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/2389-research/playgraph/engine"
	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/graph"
	"github.com/2389-research/playgraph/metrics"
)

func mustEvent(t *testing.T, data string) event.Event {
	t.Helper()
	ev, err := event.Parse([]byte(data))
	if err != nil {
		t.Fatalf("parse %s: %v", data, err)
	}
	return ev
}

func assertConsistent(t *testing.T, e *engine.Engine) {
	t.Helper()
	if err := e.Store().CheckInvariants(); err != nil {
		t.Fatalf("store inconsistent: %v", err)
	}
}

const scenarioSnapshot = `{"type":"snapshot","payload":{
	"nodes":[{"id":"t1","kind":"track"},{"id":"t2","kind":"track"},{"id":"a1","kind":"artist"}],
	"edges":[{"source":"t1","target":"t2","type":"next"},{"source":"t1","target":"a1","type":"performed_by"}]}}`

func loaded(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New()
	e.Apply(mustEvent(t, scenarioSnapshot))
	return e
}

func TestSnapshotEventAdmitsOnlySequentialTrackGraph(t *testing.T) {
	e := loaded(t)
	v := e.View()

	var nodes, edges []string
	for _, n := range v.Nodes {
		nodes = append(nodes, n.ID)
	}
	for _, ed := range v.Edges {
		edges = append(edges, ed.ID)
	}
	if diff := cmp.Diff([]string{"t1", "t2"}, nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"t1->t2"}, edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if v.Error != nil {
		t.Errorf("error: got %q, want nil", *v.Error)
	}
	assertConsistent(t, e)
}

func TestNodesRemovedCascades(t *testing.T) {
	e := loaded(t)
	res := e.Apply(mustEvent(t, `{"type":"nodes_removed","payload":["t1"]}`))

	if res.Removed != 1 {
		t.Errorf("removed: got %d, want 1", res.Removed)
	}
	v := e.View()
	if len(v.Edges) != 0 {
		t.Errorf("edges: got %d, want 0", len(v.Edges))
	}
	if diff := cmp.Diff(map[string][]string{"t2": {}}, v.Adjacency); diff != "" {
		t.Errorf("adjacency mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, e)
}

func TestAddsAreIdempotentAndUpdatesOverwrite(t *testing.T) {
	e := loaded(t)

	res := e.Apply(mustEvent(t, `{"type":"nodes_added","payload":[{"id":"t1","kind":"track","title":"new"}]}`))
	if res.Added != 0 {
		t.Errorf("re-add: got %d added, want 0", res.Added)
	}
	n, _ := e.Store().Node("t1")
	if _, ok := n.Metadata["title"]; ok {
		t.Error("re-add must not overwrite the existing entry")
	}

	res = e.Apply(mustEvent(t, `{"type":"nodes_updated","payload":[{"id":"t1","title":"new"},{"id":"t9","kind":"song"}]}`))
	if res.Updated != 1 || res.Added != 1 {
		t.Errorf("update: got %+v, want 1 updated and 1 added", res)
	}
	n, _ = e.Store().Node("t1")
	if n.Metadata["title"] != "new" {
		t.Errorf("title: got %v, want new", n.Metadata["title"])
	}
	assertConsistent(t, e)
}

func TestEdgeEventsDropDanglingAndInvalid(t *testing.T) {
	e := loaded(t)
	res := e.Apply(mustEvent(t, `{"type":"edges_added","payload":[
		{"source":"t2","target":"t1","type":"previous"},
		{"source":"t2","target":"t7","type":"next"},
		{"source":"t2","target":"t1","type":"remix_of","id":"r1"}]}`))

	if res.Added != 1 || res.Dropped != 2 {
		t.Errorf("result: got %+v, want 1 added and 2 dropped", res)
	}
	if e.Err() != nil {
		t.Errorf("dropped edges must not set the error field: %v", e.Err())
	}

	res = e.Apply(mustEvent(t, `{"type":"edges_removed","payload":[{"source":"t2","target":"t1"},"missing"]}`))
	if res.Removed != 1 {
		t.Errorf("removed: got %d, want 1", res.Removed)
	}
	assertConsistent(t, e)
}

func TestEdgesUpdatedRemovesEdgeThatBecomesInvalid(t *testing.T) {
	e := loaded(t)
	res := e.Apply(mustEvent(t, `{"type":"edges_updated","payload":[{"id":"t1->t2","type":"performed_by"}]}`))
	if res.Removed != 1 {
		t.Errorf("result: got %+v, want 1 removed", res)
	}
	if e.Store().HasEdge("t1->t2") {
		t.Error("edge should be gone")
	}
	assertConsistent(t, e)
}

func TestMalformedSnapshotKeepsStoreAndSetsError(t *testing.T) {
	e := loaded(t)
	before := e.View()

	for _, doc := range []string{
		`{"type":"snapshot","payload":{"nodes":null,"edges":[]}}`,
		`{"type":"snapshot","payload":{"nodes":[],"edges":"x"}}`,
		`{"type":"snapshot","payload":{}}`,
	} {
		res := e.Apply(mustEvent(t, doc))
		if res.Error == "" {
			t.Errorf("%s: expected error in result", doc)
		}
		if !errors.Is(e.Err(), graph.ErrMalformedPayload) {
			t.Errorf("%s: Err() got %v, want ErrMalformedPayload", doc, e.Err())
		}
		after := e.View()
		if diff := cmp.Diff(before.Nodes, after.Nodes); diff != "" {
			t.Errorf("%s: nodes changed (-before +after):\n%s", doc, diff)
		}
		if diff := cmp.Diff(before.Edges, after.Edges); diff != "" {
			t.Errorf("%s: edges changed (-before +after):\n%s", doc, diff)
		}
	}

	e.Apply(mustEvent(t, `{"type":"nodes_added","payload":[{"id":"t3","kind":"track"}]}`))
	if e.Err() != nil {
		t.Errorf("successful ingestion should clear the error, got %v", e.Err())
	}
}

func TestMalformedDeltaSetsError(t *testing.T) {
	e := loaded(t)
	e.Apply(mustEvent(t, `{"type":"nodes_added","payload":{"id":"t5"}}`))
	if !errors.Is(e.Err(), graph.ErrMalformedPayload) {
		t.Errorf("Err(): got %v, want ErrMalformedPayload", e.Err())
	}
	if e.Store().HasNode("t5") {
		t.Error("malformed delta must not mutate the store")
	}
}

func TestSnapshotMissingListIsRejected(t *testing.T) {
	e := loaded(t)
	before := e.View()

	results := []engine.ApplyResult{
		e.LoadDocument([]byte(`{"nodes":[{"id":"t9","kind":"track"}]}`)),
		e.LoadDocument([]byte(`{"edges":[]}`)),
		e.Apply(mustEvent(t, `{"type":"snapshot","payload":{"nodes":[{"id":"t9","kind":"track"}]}}`)),
		e.Apply(mustEvent(t, `{"type":"snapshot","payload":{"edges":[]}}`)),
	}
	for i, res := range results {
		if res.Error == "" || res.Added != 0 {
			t.Errorf("load %d: got %+v, want an error and no additions", i, res)
		}
	}
	if !errors.Is(e.Err(), graph.ErrMalformedPayload) {
		t.Errorf("Err(): got %v, want ErrMalformedPayload", e.Err())
	}

	after := e.View()
	if diff := cmp.Diff(before.Nodes, after.Nodes); diff != "" {
		t.Errorf("nodes changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(before.Edges, after.Edges); diff != "" {
		t.Errorf("edges changed (-before +after):\n%s", diff)
	}
	if !e.Store().HasEdge("t1->t2") {
		t.Error("prior edge t1->t2 should survive a rejected snapshot")
	}
	assertConsistent(t, e)
}

func TestSnapshotTwiceIsIdempotent(t *testing.T) {
	e := loaded(t)
	once := e.View()
	e.Apply(mustEvent(t, scenarioSnapshot))
	twice := e.View()

	if diff := cmp.Diff(once.Nodes, twice.Nodes); diff != "" {
		t.Errorf("nodes mismatch (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(once.Edges, twice.Edges); diff != "" {
		t.Errorf("edges mismatch (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(once.Adjacency, twice.Adjacency); diff != "" {
		t.Errorf("adjacency mismatch (-once +twice):\n%s", diff)
	}
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	m := metrics.New()
	e := engine.New(engine.WithMetrics(m))
	res := e.Apply(mustEvent(t, `{"type":"venue_added","payload":[]}`))
	if !res.Ignored {
		t.Error("unknown type should be reported as ignored")
	}
	if e.Err() != nil {
		t.Errorf("unknown type must not set the error field: %v", e.Err())
	}
}

func TestNodeRemovalCascadesIntoRoute(t *testing.T) {
	e := loaded(t)
	for _, cmd := range []engine.Command{
		engine.ActivateRoute{},
		engine.SetStartNode{ID: "t1"},
		engine.SetEndNode{ID: "t2"},
		engine.SelectNodes{IDs: []string{"t1", "t2"}},
	} {
		if err := e.Execute(cmd); err != nil {
			t.Fatalf("%s: %v", cmd.CommandType(), err)
		}
	}

	e.Apply(mustEvent(t, `{"type":"nodes_removed","payload":[{"id":"t2"}]}`))

	r := e.Route()
	if r.EndNode != "" || r.StartNode != "t1" {
		t.Errorf("route: got start %q end %q, want t1 and empty", r.StartNode, r.EndNode)
	}
	if diff := cmp.Diff([]string{"t1"}, e.Store().Selection().SelectedNodes); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, e)
}

func TestSnapshotPrunesRoute(t *testing.T) {
	e := loaded(t)
	_ = e.Execute(engine.ActivateRoute{})
	_ = e.Execute(engine.AddWaypoint{ID: "t1"})

	e.Apply(mustEvent(t, `{"type":"snapshot","payload":{"nodes":[{"id":"t2","kind":"track"}],"edges":[]}}`))

	if got := e.Route().Waypoints; len(got) != 0 {
		t.Errorf("waypoints: got %v, want none", got)
	}
}

func TestLoadDocumentReportsSchemaProblems(t *testing.T) {
	e := loaded(t)
	res := e.LoadDocument([]byte(`{"nodes":{"t1":{}}}`))
	if res.Error == "" || !errors.Is(e.Err(), graph.ErrMalformedPayload) {
		t.Errorf("got result %+v err %v, want malformed", res, e.Err())
	}
	if n := len(e.Store().Nodes()); n != 2 {
		t.Errorf("nodes: got %d, want the prior 2", n)
	}

	res = e.LoadDocument([]byte(`{"nodes":[{"id":"x","kind":"track"}],"edges":[]}`))
	if res.Error != "" || e.Err() != nil {
		t.Errorf("valid document: got result %+v err %v", res, e.Err())
	}
}

func TestEdgeFallbackIsReported(t *testing.T) {
	e := engine.New()
	res := e.Load(event.Snapshot{
		Nodes: event.Items(graph.RawNode{ID: "t1", Kind: "track"}, graph.RawNode{ID: "t2", Kind: "track"}),
		Edges: event.Items(graph.RawEdge{Source: "t1", Target: "t2", Type: "co_played"}),
	})
	if !res.UsedFallback {
		t.Error("expected the fallback to be reported")
	}
	if !e.Store().HasEdge("t1->t2") {
		t.Error("fallback edge should be admitted")
	}
}

func TestEdgesUpdatedKeepsFallbackEdge(t *testing.T) {
	e := engine.New()
	e.Apply(mustEvent(t, `{"type":"snapshot","payload":{
		"nodes":[{"id":"t1","kind":"track"},{"id":"t2","kind":"track"}],
		"edges":[{"id":"e1","source":"t1","target":"t2","type":"co_occurs"}]}}`))
	if !e.Store().HasEdge("e1") {
		t.Fatal("setup: fallback should admit e1")
	}

	res := e.Apply(mustEvent(t, `{"type":"edges_updated","payload":[{"id":"e1","weight":3}]}`))
	if res.Updated != 1 || res.Removed != 0 || res.Dropped != 0 {
		t.Errorf("result: got %+v, want 1 updated and nothing removed", res)
	}
	if n := len(e.Store().Edges()); n != 1 {
		t.Errorf("edges: got %d, want 1", n)
	}
	assertConsistent(t, e)
}
