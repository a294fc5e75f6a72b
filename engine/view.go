// ABOUTME: View is a self-contained copy of everything rendering and pathfinding collaborators read.
package engine

import (
	"github.com/2389-research/playgraph/graph"
	"github.com/2389-research/playgraph/route"
)

// View is detached from the engine; later mutations do not affect it.
type View struct {
	Session       string              `json:"session"`
	Nodes         []graph.Node        `json:"nodes"`
	Edges         []graph.Edge        `json:"edges"`
	Adjacency     map[string][]string `json:"adjacency"`
	VisibleNodes  []string            `json:"visible_nodes"`
	VisibleEdges  []string            `json:"visible_edges"`
	ExcludedNodes []string            `json:"excluded_nodes"`
	Selection     graph.Selection     `json:"selection"`
	Route         route.Route         `json:"route"`
	Stats         graph.Stats         `json:"stats"`
	Error         *string             `json:"error"`
	Applied       uint64              `json:"applied"`
}

// View copies the current state.
func (e *Engine) View() View {
	s := e.store
	v := View{
		Session:       e.ID.String(),
		Nodes:         s.Nodes(),
		Edges:         s.Edges(),
		Adjacency:     s.AdjacencyMap(),
		VisibleNodes:  s.VisibleNodeIDs(),
		VisibleEdges:  s.VisibleEdgeIDs(),
		ExcludedNodes: s.ExcludedNodeIDs(),
		Selection:     s.Selection(),
		Route:         e.route.Route(),
		Stats:         s.Stats(),
		Applied:       e.applied,
	}
	if e.err != nil {
		msg := e.err.Error()
		v.Error = &msg
	}
	return v
}
