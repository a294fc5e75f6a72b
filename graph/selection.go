// ABOUTME: Selection tracks selected, hovered and path-highlighted node ids.
// ABOUTME: Every setter clears the old flags before setting the new ones so node flags never drift.
package graph

// Selection is a read-only copy of the selection state.
type Selection struct {
	SelectedNodes   []string `json:"selected_nodes"`
	HoveredNode     string   `json:"hovered_node,omitempty"`
	HighlightedPath []string `json:"highlighted_path"`
}

// Selection returns the current selection. SelectedNodes is sorted;
// HighlightedPath keeps its order.
func (s *Store) Selection() Selection {
	path := make([]string, len(s.path))
	copy(path, s.path)
	return Selection{
		SelectedNodes:   s.selected.Sorted(),
		HoveredNode:     s.hovered,
		HighlightedPath: path,
	}
}

// SetSelectedNodes replaces the selection. Ids that are not admitted nodes
// are ignored.
func (s *Store) SetSelectedNodes(ids []string) {
	for id := range s.selected {
		if n, ok := s.nodes[id]; ok {
			n.Selected = false
		}
	}
	s.selected = NewIDSet()
	for _, id := range ids {
		s.AddToSelection(id)
	}
}

// AddToSelection selects id. It reports false for unknown ids.
func (s *Store) AddToSelection(id string) bool {
	n, ok := s.nodes[id]
	if !ok {
		return false
	}
	s.selected.Add(id)
	n.Selected = true
	return true
}

// RemoveFromSelection deselects id and reports whether it was selected.
func (s *Store) RemoveFromSelection(id string) bool {
	if !s.selected.Remove(id) {
		return false
	}
	if n, ok := s.nodes[id]; ok {
		n.Selected = false
	}
	return true
}

// ClearSelection deselects everything.
func (s *Store) ClearSelection() {
	s.SetSelectedNodes(nil)
}

// SetHoveredNode moves the hover to id; an empty id clears it. An unknown id
// leaves the hover unchanged and reports false.
func (s *Store) SetHoveredNode(id string) bool {
	if id != "" && !s.HasNode(id) {
		return false
	}
	prev := s.hovered
	s.hovered = id
	s.refreshHighlight(prev)
	s.refreshHighlight(id)
	return true
}

// SetHighlightedPath replaces the highlighted route. Unknown ids are skipped;
// order is kept.
func (s *Store) SetHighlightedPath(ids []string) {
	old := s.path
	s.path = make([]string, 0, len(ids))
	s.pathSet = NewIDSet()
	for _, id := range ids {
		if s.HasNode(id) {
			s.path = append(s.path, id)
			s.pathSet.Add(id)
		}
	}
	for _, id := range old {
		s.refreshHighlight(id)
	}
	for _, id := range s.path {
		s.refreshHighlight(id)
	}
}

func (s *Store) refreshHighlight(id string) {
	if n, ok := s.nodes[id]; ok {
		n.Highlighted = id == s.hovered || s.pathSet.Has(id)
	}
}

// dropVanishedSelection forgets ids no longer in the node map.
func (s *Store) dropVanishedSelection() {
	for id := range s.selected {
		if !s.HasNode(id) {
			s.selected.Remove(id)
		}
	}
	if s.hovered != "" && !s.HasNode(s.hovered) {
		s.hovered = ""
	}
	kept := s.path[:0]
	for _, id := range s.path {
		if s.HasNode(id) {
			kept = append(kept, id)
		} else {
			s.pathSet.Remove(id)
		}
	}
	s.path = kept
}

// refreshAllFlags rewrites the selection flags of every node.
func (s *Store) refreshAllFlags() {
	for id, n := range s.nodes {
		n.Selected = s.selected.Has(id)
		n.Highlighted = id == s.hovered || s.pathSet.Has(id)
	}
}
