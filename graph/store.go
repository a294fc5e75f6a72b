// ABOUTME: Store is the canonical node/edge collection with its adjacency, visibility and selection indices.
// ABOUTME: Full replacements rebuild the indices; single-record mutations patch them incrementally.
package graph

import (
	"fmt"
	"maps"
	"sort"
)

// Change describes the effect of a single-record mutation.
type Change int

const (
	Unchanged Change = iota
	Inserted
	Updated
	Removed
)

func (c Change) String() string {
	switch c {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// ReplaceResult summarizes a full replacement.
type ReplaceResult struct {
	Admitted     int  `json:"admitted"`
	Rejected     int  `json:"rejected"`
	Pruned       int  `json:"pruned"`
	UsedFallback bool `json:"used_fallback"`
}

// Stats is a point-in-time count of the store's collections.
type Stats struct {
	Nodes        int `json:"nodes"`
	Edges        int `json:"edges"`
	VisibleNodes int `json:"visible_nodes"`
	VisibleEdges int `json:"visible_edges"`
	Excluded     int `json:"excluded"`
	Selected     int `json:"selected"`
}

// Store owns every Node and Edge. It is not safe for concurrent use; the
// engine serializes all access to it.
type Store struct {
	nodes map[string]*Node
	edges map[string]*Edge
	adj   *Adjacency

	excluded IDSet
	// nodeAllow and edgeAllow are nil when no allowlist is in effect.
	nodeAllow    IDSet
	edgeAllow    IDSet
	visibleNodes IDSet
	visibleEdges IDSet

	selected IDSet
	hovered  string
	path     []string
	pathSet  IDSet
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes:        make(map[string]*Node),
		edges:        make(map[string]*Edge),
		adj:          NewAdjacency(),
		excluded:     NewIDSet(),
		visibleNodes: NewIDSet(),
		visibleEdges: NewIDSet(),
		selected:     NewIDSet(),
		pathSet:      NewIDSet(),
	}
}

// NodeKind implements NodeLookup against the admitted nodes.
func (s *Store) NodeKind(id string) (Kind, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return "", false
	}
	return n.Kind, true
}

// HasNode reports whether id is an admitted node.
func (s *Store) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// HasEdge reports whether id is an admitted edge.
func (s *Store) HasEdge(id string) bool {
	_, ok := s.edges[id]
	return ok
}

// ReplaceNodes swaps in a new node set built from the track records in raw.
// Surviving nodes keep their engine-owned position. Edges left dangling are
// pruned, the node allowlist is cleared, and every index is rebuilt.
func (s *Store) ReplaceNodes(raw []RawNode) ReplaceResult {
	var res ReplaceResult
	next := make(map[string]*Node, len(raw))
	for _, r := range raw {
		n, err := r.Normalize()
		if err != nil {
			res.Rejected++
			continue
		}
		if prev, ok := s.nodes[n.ID]; ok {
			n.X, n.Y = prev.X, prev.Y
		}
		next[n.ID] = &n
	}
	res.Admitted = len(next)
	s.nodes = next

	for id, e := range s.edges {
		if !s.HasNode(e.Source) || !s.HasNode(e.Target) {
			delete(s.edges, id)
			res.Pruned++
		}
	}

	s.nodeAllow = nil
	s.dropVanishedSelection()
	s.rebuildAdjacency()
	s.recomputeVisibility()
	s.refreshAllFlags()
	return res
}

// ReplaceEdges swaps in the edges of raw that pass the validator. When a
// non-empty input validates to nothing, it falls back to every edge with
// both endpoints present whose relation is not structural, so an unexpected
// upstream tagging scheme does not blank the graph.
func (s *Store) ReplaceEdges(raw []RawEdge) ReplaceResult {
	var res ReplaceResult
	next := make(map[string]*Edge, len(raw))
	for _, r := range raw {
		if !IsValidEdge(r, s) {
			continue
		}
		e := edgeFromRaw(r)
		next[e.ID] = &e
	}

	if len(next) == 0 && len(raw) > 0 {
		res.UsedFallback = true
		for _, r := range raw {
			source, target, ok := r.Endpoints()
			if !ok || !s.HasNode(source) || !s.HasNode(target) || isStructural(r.Type) {
				continue
			}
			e := edgeFromRaw(r)
			next[e.ID] = &e
		}
	}

	res.Admitted = len(next)
	res.Rejected = len(raw) - len(next)
	s.edges = next
	s.edgeAllow = nil
	s.rebuildAdjacency()
	s.recomputeEdgeVisibility()
	return res
}

// ApplySnapshot replaces nodes then edges as a single step.
func (s *Store) ApplySnapshot(nodes []RawNode, edges []RawEdge) (ReplaceResult, ReplaceResult) {
	nodeRes := s.ReplaceNodes(nodes)
	edgeRes := s.ReplaceEdges(edges)
	return nodeRes, edgeRes
}

// AddNode inserts raw if its id is not already present. An existing node
// wins: re-adding is a no-op that reports Unchanged.
func (s *Store) AddNode(raw RawNode) (Change, error) {
	n, err := raw.Normalize()
	if err != nil {
		return Unchanged, err
	}
	if s.HasNode(n.ID) {
		return Unchanged, nil
	}
	s.insertNode(n)
	return Inserted, nil
}

// UpsertNode inserts raw, or overwrites the server-owned fields of an
// existing node. A partial update may omit the kind; a non-track kind is
// rejected because an admitted node's kind never changes.
func (s *Store) UpsertNode(raw RawNode) (Change, error) {
	existing, ok := s.nodes[raw.ID]
	if !ok {
		n, err := raw.Normalize()
		if err != nil {
			return Unchanged, err
		}
		s.insertNode(n)
		return Inserted, nil
	}
	if raw.Kind != "" && !raw.IsTrack() {
		return Unchanged, fmt.Errorf("%w: %q (node %s)", ErrUnsupportedKind, raw.Kind, raw.ID)
	}
	if len(raw.Metadata) > 0 {
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]any, len(raw.Metadata))
		}
		maps.Copy(existing.Metadata, raw.Metadata)
	}
	return Updated, nil
}

func (s *Store) insertNode(n Node) {
	n.Selected, n.Highlighted, n.Visible = false, false, false
	node := &n
	s.nodes[n.ID] = node
	s.adj.AddNode(n.ID)
	s.setNodeVisible(node, s.nodePasses(n.ID))
}

// RemoveNode deletes id and cascades: incident edges, adjacency entries,
// selection, hover, highlighted path and visible sets all drop it.
func (s *Store) RemoveNode(id string) Change {
	if !s.HasNode(id) {
		return Unchanged
	}
	for _, edgeID := range s.adj.Incident(id) {
		s.RemoveEdge(edgeID)
	}
	s.adj.RemoveNode(id)
	delete(s.nodes, id)
	s.visibleNodes.Remove(id)
	s.selected.Remove(id)
	if s.hovered == id {
		s.hovered = ""
	}
	if s.pathSet.Has(id) {
		s.path = without(s.path, id)
		s.pathSet.Remove(id)
	}
	return Removed
}

// AddEdge inserts raw if its effective id is not already present and it
// passes the validator against the current nodes.
func (s *Store) AddEdge(raw RawEdge) (Change, error) {
	id := raw.EffectiveID()
	if id == "" {
		return Unchanged, ErrInvalidEdge
	}
	if s.HasEdge(id) {
		return Unchanged, nil
	}
	if err := s.admit(raw); err != nil {
		return Unchanged, err
	}
	e := edgeFromRaw(raw)
	s.insertEdge(&e)
	return Inserted, nil
}

// UpsertEdge inserts raw or overwrites the matching edge with the fields
// raw carries. An update that leaves the edge dangling or non-sequential
// removes it. An edge admitted by the ReplaceEdges fallback survives updates
// that keep its endpoints and relation.
func (s *Store) UpsertEdge(raw RawEdge) (Change, error) {
	id := raw.EffectiveID()
	existing, ok := s.edges[id]
	if !ok {
		return s.AddEdge(raw)
	}

	merged := RawEdge{
		ID:       existing.ID,
		Source:   existing.Source,
		Target:   existing.Target,
		Type:     existing.Type,
		Metadata: maps.Clone(existing.Metadata),
	}
	if source, target, ok := raw.Endpoints(); ok {
		merged.Source, merged.Target = source, target
	}
	if raw.Type != "" {
		merged.Type = raw.Type
	}
	if len(raw.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(raw.Metadata))
		}
		maps.Copy(merged.Metadata, raw.Metadata)
	}

	if err := s.admit(merged); err != nil && !s.keepsFallbackEdge(existing, merged) {
		s.RemoveEdge(id)
		return Removed, err
	}

	s.adj.Unlink(*existing)
	updated := edgeFromRaw(merged)
	existing.Source = updated.Source
	existing.Target = updated.Target
	existing.Type = updated.Type
	existing.Metadata = updated.Metadata
	s.adj.Link(*existing)
	s.setEdgeVisible(existing, s.edgePasses(existing))
	return Updated, nil
}

// keepsFallbackEdge reports whether merged may replace an existing edge that
// never passed the validator. It holds under the rule the fallback admitted
// the edge by: same endpoints and relation, both endpoints present, and a
// relation that is not structural.
func (s *Store) keepsFallbackEdge(existing *Edge, merged RawEdge) bool {
	if IsValidEdge(rawFromEdge(existing), s) {
		return false
	}
	source, target, ok := merged.Endpoints()
	if !ok || source != existing.Source || target != existing.Target || NormalizeTag(merged.Type) != existing.Type {
		return false
	}
	return s.HasNode(source) && s.HasNode(target) && !isStructural(merged.Type)
}

// admit checks referential integrity, then domain validity.
func (s *Store) admit(raw RawEdge) error {
	source, target, ok := raw.Endpoints()
	if !ok {
		return ErrInvalidEdge
	}
	if !s.HasNode(source) || !s.HasNode(target) {
		return fmt.Errorf("%w: %s", ErrDanglingEdge, EdgeID(source, target))
	}
	if !IsValidEdge(raw, s) {
		return fmt.Errorf("%w: %s (%q)", ErrInvalidEdge, EdgeID(source, target), raw.Type)
	}
	return nil
}

func (s *Store) insertEdge(e *Edge) {
	s.edges[e.ID] = e
	s.adj.Link(*e)
	s.setEdgeVisible(e, s.edgePasses(e))
}

// RemoveEdge deletes id and unlinks it from the adjacency index.
func (s *Store) RemoveEdge(id string) Change {
	e, ok := s.edges[id]
	if !ok {
		return Unchanged
	}
	s.adj.Unlink(*e)
	delete(s.edges, id)
	s.visibleEdges.Remove(id)
	return Removed
}

// SetNodePosition records the layout position of id.
func (s *Store) SetNodePosition(id string, x, y float64) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n.X, n.Y = x, y
	return nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Edge returns a copy of the edge with the given id.
func (s *Store) Edge(id string) (Edge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return Edge{}, false
	}
	return e.clone(), true
}

// Nodes returns copies of every node, sorted by id.
func (s *Store) Nodes() []Node {
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns copies of every edge, sorted by id.
func (s *Store) Edges() []Edge {
	out := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodeMap returns copies of every node keyed by id.
func (s *Store) NodeMap() map[string]Node {
	out := make(map[string]Node, len(s.nodes))
	for id, n := range s.nodes {
		out[id] = n.clone()
	}
	return out
}

// EdgeMap returns copies of every edge keyed by id.
func (s *Store) EdgeMap() map[string]Edge {
	out := make(map[string]Edge, len(s.edges))
	for id, e := range s.edges {
		out[id] = e.clone()
	}
	return out
}

// AdjacencyMap returns a copy of the adjacency index.
func (s *Store) AdjacencyMap() map[string][]string {
	return s.adj.Map()
}

// Neighbors returns the sorted neighbor ids of id.
func (s *Store) Neighbors(id string) []string {
	return s.adj.Neighbors(id)
}

// Stats counts the store's collections.
func (s *Store) Stats() Stats {
	return Stats{
		Nodes:        len(s.nodes),
		Edges:        len(s.edges),
		VisibleNodes: s.visibleNodes.Len(),
		VisibleEdges: s.visibleEdges.Len(),
		Excluded:     s.excluded.Len(),
		Selected:     s.selected.Len(),
	}
}

func (s *Store) rebuildAdjacency() {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	edges := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, *e)
	}
	s.adj.Rebuild(ids, edges)
}

func edgeFromRaw(r RawEdge) Edge {
	source, target, _ := r.Endpoints()
	return Edge{
		ID:       r.EffectiveID(),
		Source:   source,
		Target:   target,
		Type:     NormalizeTag(r.Type),
		Metadata: maps.Clone(r.Metadata),
	}
}

func rawFromEdge(e *Edge) RawEdge {
	return RawEdge{
		ID:       e.ID,
		Source:   e.Source,
		Target:   e.Target,
		Type:     e.Type,
		Metadata: e.Metadata,
	}
}

func without(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
