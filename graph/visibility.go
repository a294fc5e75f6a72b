// ABOUTME: Visibility composes a caller allowlist with an exclusion blocklist into visible node and edge sets.
// ABOUTME: The Visible flag on every node and edge always mirrors membership in those sets.
package graph

// SetVisibleNodeIDs narrows visible nodes to ids, still minus the exclusion
// set. Edge visibility follows because it depends on endpoint visibility.
func (s *Store) SetVisibleNodeIDs(ids []string) {
	s.nodeAllow = NewIDSet(ids...)
	s.recomputeVisibility()
}

// SetVisibleEdgeIDs narrows visible edges to ids whose endpoints are visible.
func (s *Store) SetVisibleEdgeIDs(ids []string) {
	s.edgeAllow = NewIDSet(ids...)
	s.recomputeEdgeVisibility()
}

// SetExcludedNodeIDs replaces the exclusion set. Both allowlists are dropped
// and visibility is recomputed from the exclusion set alone.
func (s *Store) SetExcludedNodeIDs(ids []string) {
	s.excluded = NewIDSet(ids...)
	s.nodeAllow = nil
	s.edgeAllow = nil
	s.recomputeVisibility()
}

// ClearVisibilityFilters drops the allowlists and the exclusion set.
func (s *Store) ClearVisibilityFilters() {
	s.SetExcludedNodeIDs(nil)
}

// VisibleNodeIDs returns the sorted visible node ids.
func (s *Store) VisibleNodeIDs() []string { return s.visibleNodes.Sorted() }

// VisibleEdgeIDs returns the sorted visible edge ids.
func (s *Store) VisibleEdgeIDs() []string { return s.visibleEdges.Sorted() }

// ExcludedNodeIDs returns the sorted exclusion set. Excluded ids need not
// name admitted nodes.
func (s *Store) ExcludedNodeIDs() []string { return s.excluded.Sorted() }

func (s *Store) nodePasses(id string) bool {
	if s.excluded.Has(id) {
		return false
	}
	return s.nodeAllow == nil || s.nodeAllow.Has(id)
}

func (s *Store) edgePasses(e *Edge) bool {
	if !s.visibleNodes.Has(e.Source) || !s.visibleNodes.Has(e.Target) {
		return false
	}
	return s.edgeAllow == nil || s.edgeAllow.Has(e.ID)
}

func (s *Store) setNodeVisible(n *Node, visible bool) {
	n.Visible = visible
	if visible {
		s.visibleNodes.Add(n.ID)
	} else {
		s.visibleNodes.Remove(n.ID)
	}
}

func (s *Store) setEdgeVisible(e *Edge, visible bool) {
	e.Visible = visible
	if visible {
		s.visibleEdges.Add(e.ID)
	} else {
		s.visibleEdges.Remove(e.ID)
	}
}

func (s *Store) recomputeVisibility() {
	s.visibleNodes = make(IDSet, len(s.nodes))
	for id, n := range s.nodes {
		s.setNodeVisible(n, s.nodePasses(id))
	}
	s.recomputeEdgeVisibility()
}

func (s *Store) recomputeEdgeVisibility() {
	s.visibleEdges = make(IDSet, len(s.edges))
	for _, e := range s.edges {
		s.setEdgeVisible(e, s.edgePasses(e))
	}
}
