// ABOUTME: Node and Edge are the strict, admitted forms of inbound track graph records.
// ABOUTME: Engine-owned display fields (position, selection, highlight, visibility) live here too.
package graph

import "maps"

// Kind is the admitted node category. Only tracks are rendered as graph nodes.
type Kind string

// KindTrack is the single kind the store admits.
const KindTrack Kind = "track"

// Node is an admitted track. X, Y, Selected, Highlighted and Visible are owned
// by the engine; server updates never overwrite them.
type Node struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Selected    bool           `json:"selected"`
	Highlighted bool           `json:"highlighted"`
	Visible     bool           `json:"visible"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// clone returns a copy whose metadata map is not shared with the store.
func (n *Node) clone() Node {
	c := *n
	c.Metadata = maps.Clone(n.Metadata)
	return c
}

// Edge is an admitted sequential transition between two tracks.
type Edge struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Type     string         `json:"type,omitempty"`
	Visible  bool           `json:"visible"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e *Edge) clone() Edge {
	c := *e
	c.Metadata = maps.Clone(e.Metadata)
	return c
}

// EdgeID returns the deterministic id for an edge without one.
func EdgeID(source, target string) string {
	return source + "->" + target
}

// NodeLookup resolves node kinds by id. The store implements it; KindMap is a
// plain-map implementation for validating against data outside a store.
type NodeLookup interface {
	NodeKind(id string) (Kind, bool)
}

// KindMap is a NodeLookup over a literal id -> kind map.
type KindMap map[string]Kind

// NodeKind implements NodeLookup.
func (m KindMap) NodeKind(id string) (Kind, bool) {
	k, ok := m[id]
	return k, ok
}
