// ABOUTME: CheckInvariants audits the store's derived indices against its canonical collections.
// ABOUTME: Used by tests after random operation sequences and by the inspect command.
package graph

import "fmt"

// CheckInvariants returns an *InvariantError for the first inconsistency
// found, or nil when the store is consistent.
func (s *Store) CheckInvariants() error {
	for _, check := range []func() error{
		s.checkReferentialIntegrity,
		s.checkAdjacency,
		s.checkVisibility,
		s.checkSelection,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func violation(name, format string, args ...any) error {
	return &InvariantError{Invariant: name, Detail: fmt.Sprintf(format, args...)}
}

func (s *Store) checkReferentialIntegrity() error {
	for id, e := range s.edges {
		if id != e.ID {
			return violation("referential_integrity", "edge keyed %s has id %s", id, e.ID)
		}
		if !s.HasNode(e.Source) || !s.HasNode(e.Target) {
			return violation("referential_integrity", "edge %s references missing endpoint", id)
		}
	}
	for id, n := range s.nodes {
		if id != n.ID || n.Kind != KindTrack {
			return violation("referential_integrity", "node keyed %s is %s/%s", id, n.ID, n.Kind)
		}
	}
	return nil
}

func (s *Store) checkAdjacency() error {
	if s.adj.Len() != len(s.nodes) {
		return violation("adjacency_coverage", "%d entries for %d nodes", s.adj.Len(), len(s.nodes))
	}
	want := make(map[string]map[string]int, len(s.nodes))
	for id := range s.nodes {
		if !s.adj.Has(id) {
			return violation("adjacency_coverage", "node %s has no entry", id)
		}
		want[id] = map[string]int{}
	}
	for _, e := range s.edges {
		want[e.Source][e.Target]++
		if e.Source != e.Target {
			want[e.Target][e.Source]++
		}
		if !s.adj.incident[e.Source].Has(e.ID) || !s.adj.incident[e.Target].Has(e.ID) {
			return violation("adjacency_coverage", "edge %s not indexed as incident", e.ID)
		}
	}
	for a, row := range s.adj.neighbors {
		for b, count := range row {
			if !s.adj.Adjacent(b, a) {
				return violation("adjacency_symmetry", "%s lists %s but not the reverse", a, b)
			}
			if want[a][b] != count {
				return violation("adjacency_symmetry", "%s-%s counted %d, edges give %d", a, b, count, want[a][b])
			}
		}
		if len(row) != len(want[a]) {
			return violation("adjacency_symmetry", "%s has %d neighbors, edges give %d", a, len(row), len(want[a]))
		}
	}
	return nil
}

func (s *Store) checkVisibility() error {
	for id, n := range s.nodes {
		wantVisible := s.nodePasses(id)
		if n.Visible != wantVisible || s.visibleNodes.Has(id) != wantVisible {
			return violation("visibility", "node %s visible=%v in-set=%v want %v", id, n.Visible, s.visibleNodes.Has(id), wantVisible)
		}
	}
	if s.visibleNodes.Len() > len(s.nodes) {
		return violation("visibility", "visible node set holds unknown ids")
	}
	for id, e := range s.edges {
		wantVisible := s.edgePasses(e)
		if e.Visible != wantVisible || s.visibleEdges.Has(id) != wantVisible {
			return violation("visibility", "edge %s visible=%v in-set=%v want %v", id, e.Visible, s.visibleEdges.Has(id), wantVisible)
		}
	}
	if s.visibleEdges.Len() > len(s.edges) {
		return violation("visibility", "visible edge set holds unknown ids")
	}
	return nil
}

func (s *Store) checkSelection() error {
	for id := range s.selected {
		if !s.HasNode(id) {
			return violation("selection", "selected id %s is not a node", id)
		}
	}
	if s.hovered != "" && !s.HasNode(s.hovered) {
		return violation("selection", "hovered id %s is not a node", s.hovered)
	}
	for _, id := range s.path {
		if !s.HasNode(id) || !s.pathSet.Has(id) {
			return violation("selection", "path id %s is not a node", id)
		}
	}
	for id, n := range s.nodes {
		if n.Selected != s.selected.Has(id) {
			return violation("selection", "node %s selected flag out of sync", id)
		}
		if n.Highlighted != (id == s.hovered || s.pathSet.Has(id)) {
			return violation("selection", "node %s highlighted flag out of sync", id)
		}
	}
	return nil
}
