// ABOUTME: Tests for composing visible-id allowlists with the exclusion set.
package graph_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/2389-research/playgraph/graph"
)

func visibleFlags(s *graph.Store) map[string]bool {
	out := map[string]bool{}
	for _, n := range s.Nodes() {
		out[n.ID] = n.Visible
	}
	for _, e := range s.Edges() {
		out[e.ID] = e.Visible
	}
	return out
}

func TestExcludingEndpointHidesEdge(t *testing.T) {
	s := graph.NewStore()
	s.ApplySnapshot([]graph.RawNode{track("t1"), track("t2")}, []graph.RawEdge{next("t1", "t2")})

	s.SetExcludedNodeIDs([]string{"t2"})

	want := map[string]bool{"t1": true, "t2": false, "t1->t2": false}
	if diff := cmp.Diff(want, visibleFlags(s)); diff != "" {
		t.Errorf("visibility mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, s)
}

func TestAllowlistAndExclusionCompose(t *testing.T) {
	s := graph.NewStore()
	s.ApplySnapshot(
		[]graph.RawNode{track("t1"), track("t2"), track("t3")},
		[]graph.RawEdge{next("t1", "t2"), next("t2", "t3")},
	)
	s.SetExcludedNodeIDs([]string{"t3"})
	s.SetVisibleNodeIDs([]string{"t1", "t2", "t3"})

	if diff := cmp.Diff([]string{"t1", "t2"}, s.VisibleNodeIDs()); diff != "" {
		t.Errorf("visible nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"t1->t2"}, s.VisibleEdgeIDs()); diff != "" {
		t.Errorf("visible edges mismatch (-want +got):\n%s", diff)
	}

	s.SetVisibleEdgeIDs([]string{"t2->t3"})
	if got := s.VisibleEdgeIDs(); len(got) != 0 {
		t.Errorf("visible edges: got %v, want none", got)
	}
	assertConsistent(t, s)
}

func TestExclusionSupersedesAllowlists(t *testing.T) {
	s := graph.NewStore()
	s.ApplySnapshot([]graph.RawNode{track("t1"), track("t2")}, []graph.RawEdge{next("t1", "t2")})
	s.SetVisibleNodeIDs([]string{"t1"})
	s.SetVisibleEdgeIDs(nil)

	s.SetExcludedNodeIDs(nil)

	want := map[string]bool{"t1": true, "t2": true, "t1->t2": true}
	if diff := cmp.Diff(want, visibleFlags(s)); diff != "" {
		t.Errorf("visibility mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, s)
}

func TestIncrementalMutationsRespectFilters(t *testing.T) {
	s := graph.NewStore()
	s.ApplySnapshot([]graph.RawNode{track("t1"), track("t2")}, nil)
	s.SetVisibleNodeIDs([]string{"t1", "t2"})

	if _, err := s.AddNode(track("t3")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := s.AddEdge(next("t1", "t3")); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if _, err := s.AddEdge(next("t1", "t2")); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	want := map[string]bool{"t1": true, "t2": true, "t3": false, "t1->t2": true, "t1->t3": false}
	if diff := cmp.Diff(want, visibleFlags(s)); diff != "" {
		t.Errorf("visibility mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, s)
}

func TestReplaceNodesClearsNodeAllowlist(t *testing.T) {
	s := graph.NewStore()
	s.ReplaceNodes([]graph.RawNode{track("t1"), track("t2")})
	s.SetVisibleNodeIDs([]string{"t1"})
	s.SetExcludedNodeIDs([]string{"t1"})
	s.SetVisibleNodeIDs([]string{"t2"})

	s.ReplaceNodes([]graph.RawNode{track("t1"), track("t2"), track("t3")})

	if diff := cmp.Diff([]string{"t2", "t3"}, s.VisibleNodeIDs()); diff != "" {
		t.Errorf("visible nodes mismatch (-want +got):\n%s", diff)
	}
	assertConsistent(t, s)
}
