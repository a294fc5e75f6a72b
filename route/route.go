// ABOUTME: Manager holds the prospective route (start, end, ordered waypoints) the user builds on the graph.
// ABOUTME: It only checks node ids for existence; computing the actual path belongs to a pathfinding collaborator.
package route

import (
	"fmt"
	"slices"

	"github.com/2389-research/playgraph/graph"
)

// NodeChecker answers whether a node id exists. *graph.Store implements it.
type NodeChecker interface {
	HasNode(id string) bool
}

// Route is a read-only copy of the manager's state.
type Route struct {
	Active     bool     `json:"active"`
	StartNode  string   `json:"start_node,omitempty"`
	EndNode    string   `json:"end_node,omitempty"`
	Waypoints  []string `json:"waypoints"`
	Played     []string `json:"played"`
	LastAction string   `json:"last_action,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Manager tracks one route. Not safe for concurrent use.
type Manager struct {
	nodes NodeChecker

	active    bool
	start     string
	end       string
	waypoints []string
	played    graph.IDSet
	last      Action
	errMsg    string
}

// NewManager creates an inactive manager that validates ids against nodes.
func NewManager(nodes NodeChecker) *Manager {
	return &Manager{nodes: nodes, played: graph.NewIDSet()}
}

// Route returns a copy of the current state.
func (m *Manager) Route() Route {
	r := Route{
		Active:    m.active,
		StartNode: m.start,
		EndNode:   m.end,
		Waypoints: slices.Clone(m.waypoints),
		Played:    m.played.Sorted(),
		Error:     m.errMsg,
	}
	if r.Waypoints == nil {
		r.Waypoints = []string{}
	}
	if m.last != nil {
		r.LastAction = m.last.ActionType()
	}
	return r
}

// LastAction returns the pending undo record, or nil.
func (m *Manager) LastAction() Action { return m.last }

// Active reports whether route mode is on.
func (m *Manager) Active() bool { return m.active }

// Activate turns route mode on with an empty route. Activating an active
// manager keeps its route.
func (m *Manager) Activate() {
	if m.active {
		return
	}
	m.reset()
	m.active = true
}

// Deactivate turns route mode off and discards the route.
func (m *Manager) Deactivate() {
	m.reset()
}

func (m *Manager) reset() {
	*m = Manager{nodes: m.nodes, played: graph.NewIDSet()}
}

// check gates every user mutation. Rejections are kept as the display error.
func (m *Manager) check(id string) error {
	if !m.active {
		return m.reject(ErrRouteInactive)
	}
	if m.nodes == nil || !m.nodes.HasNode(id) {
		return m.reject(fmt.Errorf("%w: %s", ErrUnknownNode, id))
	}
	return nil
}

func (m *Manager) reject(err error) error {
	m.errMsg = err.Error()
	return err
}

func (m *Manager) accept() {
	m.errMsg = ""
}

// SetStartNode sets the route's start. Once any node has been played the
// start is fixed.
func (m *Manager) SetStartNode(id string) error {
	if err := m.check(id); err != nil {
		return err
	}
	if m.played.Len() > 0 && id != m.start {
		return m.reject(ErrStartLocked)
	}
	m.accept()
	if id == m.start {
		return nil
	}
	m.last = SetStartAction{Prev: m.start}
	m.start = id
	return nil
}

// SetEndNode sets the route's end. A different previous end is demoted to
// the tail of the waypoints; the new end leaves the waypoints.
func (m *Manager) SetEndNode(id string) error {
	if err := m.check(id); err != nil {
		return err
	}
	m.accept()
	if id == m.end {
		return nil
	}
	m.last = SetEndAction{PrevEnd: m.end, PrevWaypoints: slices.Clone(m.waypoints)}
	if m.end != "" && !slices.Contains(m.waypoints, m.end) {
		m.waypoints = append(m.waypoints, m.end)
	}
	m.waypoints = remove(m.waypoints, id)
	m.end = id
	return nil
}

// AddWaypoint inserts id right after the last played waypoint, or at the
// front when none has been played. Adding a present waypoint is a no-op.
func (m *Manager) AddWaypoint(id string) error {
	if err := m.check(id); err != nil {
		return err
	}
	m.accept()
	if slices.Contains(m.waypoints, id) {
		return nil
	}
	at := 0
	for i, wp := range m.waypoints {
		if m.played.Has(wp) {
			at = i + 1
		}
	}
	m.waypoints = slices.Insert(m.waypoints, at, id)
	m.last = AddWaypointAction{ID: id}
	return nil
}

// RemoveWaypoint drops id from the waypoints. Absent ids are a no-op.
func (m *Manager) RemoveWaypoint(id string) error {
	if !m.active {
		return m.reject(ErrRouteInactive)
	}
	m.accept()
	if !slices.Contains(m.waypoints, id) {
		return nil
	}
	m.waypoints = remove(m.waypoints, id)
	m.last = nil
	return nil
}

// ClearWaypoints empties the waypoint list.
func (m *Manager) ClearWaypoints() error {
	if !m.active {
		return m.reject(ErrRouteInactive)
	}
	m.accept()
	if len(m.waypoints) == 0 {
		return nil
	}
	m.waypoints = nil
	m.last = nil
	return nil
}

// MoveWaypoint swaps the waypoint at index with its neighbor one slot up
// (direction -1) or down (direction 1). Out-of-range moves are a no-op.
func (m *Manager) MoveWaypoint(index, direction int) error {
	if !m.active {
		return m.reject(ErrRouteInactive)
	}
	if direction != -1 && direction != 1 {
		return m.reject(ErrInvalidDirection)
	}
	m.accept()
	other := index + direction
	if index < 0 || index >= len(m.waypoints) || other < 0 || other >= len(m.waypoints) {
		return nil
	}
	m.waypoints[index], m.waypoints[other] = m.waypoints[other], m.waypoints[index]
	m.last = nil
	return nil
}

// MarkPlayed records that playback has reached id.
func (m *Manager) MarkPlayed(id string) error {
	if err := m.check(id); err != nil {
		return err
	}
	m.accept()
	m.played.Add(id)
	return nil
}

// UndoLastAction reverts the last SetStartNode, SetEndNode or AddWaypoint.
// It reports false when there is nothing to undo.
func (m *Manager) UndoLastAction() bool {
	if m.last == nil {
		return false
	}
	switch a := m.last.(type) {
	case SetStartAction:
		m.start = a.Prev
	case SetEndAction:
		m.end = a.PrevEnd
		m.waypoints = slices.Clone(a.PrevWaypoints)
	case AddWaypointAction:
		m.waypoints = remove(m.waypoints, a.ID)
	}
	m.last = nil
	m.accept()
	return true
}

// Forget removes every reference to a node that left the graph. It works in
// any mode and reports whether anything changed.
func (m *Manager) Forget(id string) bool {
	changed := false
	if m.start == id {
		m.start = ""
		changed = true
	}
	if m.end == id {
		m.end = ""
		changed = true
	}
	if slices.Contains(m.waypoints, id) {
		m.waypoints = remove(m.waypoints, id)
		changed = true
	}
	if m.played.Remove(id) {
		changed = true
	}
	if changed || slices.Contains(mentioned(m.last), id) {
		m.last = nil
	}
	return changed
}

// Prune forgets every referenced id for which keep reports false. Used after
// full snapshot replacements.
func (m *Manager) Prune(keep func(id string) bool) bool {
	changed := false
	for _, id := range m.referenced() {
		if !keep(id) && m.Forget(id) {
			changed = true
		}
	}
	for _, id := range mentioned(m.last) {
		if !keep(id) {
			m.last = nil
			break
		}
	}
	return changed
}

func (m *Manager) referenced() []string {
	ids := graph.NewIDSet(m.waypoints...)
	for id := range m.played {
		ids.Add(id)
	}
	if m.start != "" {
		ids.Add(m.start)
	}
	if m.end != "" {
		ids.Add(m.end)
	}
	return ids.Sorted()
}

// mentioned lists the ids an undo record would restore.
func mentioned(a Action) []string {
	var ids []string
	switch a := a.(type) {
	case SetStartAction:
		ids = []string{a.Prev}
	case SetEndAction:
		ids = append([]string{a.PrevEnd}, a.PrevWaypoints...)
	case AddWaypointAction:
		ids = []string{a.ID}
	}
	return slices.DeleteFunc(ids, func(id string) bool { return id == "" })
}

func remove(ids []string, drop string) []string {
	return slices.DeleteFunc(ids, func(id string) bool { return id == drop })
}
