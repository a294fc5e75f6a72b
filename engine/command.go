// ABOUTME: Command is a tagged union of user actions: selection, hover, visibility filters, layout and route edits.
// ABOUTME: Commands decode from JSON with a "type" discriminator and run against the engine one at a time.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownCommand indicates a command type the engine does not handle.
var ErrUnknownCommand = errors.New("unknown command type")

// Command is a user action against the engine.
type Command interface {
	CommandType() string
	commandSeal()
}

// SelectNodes replaces the selection.
type SelectNodes struct {
	IDs []string `json:"ids"`
}

func (SelectNodes) CommandType() string { return "select_nodes" }
func (SelectNodes) commandSeal()        {}

// AddToSelection selects one more node.
type AddToSelection struct {
	ID string `json:"id"`
}

func (AddToSelection) CommandType() string { return "add_to_selection" }
func (AddToSelection) commandSeal()        {}

// RemoveFromSelection deselects one node.
type RemoveFromSelection struct {
	ID string `json:"id"`
}

func (RemoveFromSelection) CommandType() string { return "remove_from_selection" }
func (RemoveFromSelection) commandSeal()        {}

// ClearSelection deselects everything.
type ClearSelection struct{}

func (ClearSelection) CommandType() string { return "clear_selection" }
func (ClearSelection) commandSeal()        {}

// HoverNode moves the hover; an empty ID clears it.
type HoverNode struct {
	ID string `json:"id"`
}

func (HoverNode) CommandType() string { return "hover_node" }
func (HoverNode) commandSeal()        {}

// HighlightPath replaces the highlighted route.
type HighlightPath struct {
	IDs []string `json:"ids"`
}

func (HighlightPath) CommandType() string { return "highlight_path" }
func (HighlightPath) commandSeal()        {}

// SetVisibleNodes narrows visible nodes to IDs.
type SetVisibleNodes struct {
	IDs []string `json:"ids"`
}

func (SetVisibleNodes) CommandType() string { return "set_visible_nodes" }
func (SetVisibleNodes) commandSeal()        {}

// SetVisibleEdges narrows visible edges to IDs.
type SetVisibleEdges struct {
	IDs []string `json:"ids"`
}

func (SetVisibleEdges) CommandType() string { return "set_visible_edges" }
func (SetVisibleEdges) commandSeal()        {}

// ExcludeNodes replaces the exclusion set.
type ExcludeNodes struct {
	IDs []string `json:"ids"`
}

func (ExcludeNodes) CommandType() string { return "exclude_nodes" }
func (ExcludeNodes) commandSeal()        {}

// ClearFilters drops allowlists and exclusions.
type ClearFilters struct{}

func (ClearFilters) CommandType() string { return "clear_filters" }
func (ClearFilters) commandSeal()        {}

// SetPosition records a layout position.
type SetPosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (SetPosition) CommandType() string { return "set_position" }
func (SetPosition) commandSeal()        {}

// ActivateRoute turns route mode on.
type ActivateRoute struct{}

func (ActivateRoute) CommandType() string { return "activate_route" }
func (ActivateRoute) commandSeal()        {}

// DeactivateRoute turns route mode off and discards the route.
type DeactivateRoute struct{}

func (DeactivateRoute) CommandType() string { return "deactivate_route" }
func (DeactivateRoute) commandSeal()        {}

// SetStartNode sets the route start.
type SetStartNode struct {
	ID string `json:"id"`
}

func (SetStartNode) CommandType() string { return "set_start_node" }
func (SetStartNode) commandSeal()        {}

// SetEndNode sets the route end.
type SetEndNode struct {
	ID string `json:"id"`
}

func (SetEndNode) CommandType() string { return "set_end_node" }
func (SetEndNode) commandSeal()        {}

// AddWaypoint adds a route waypoint.
type AddWaypoint struct {
	ID string `json:"id"`
}

func (AddWaypoint) CommandType() string { return "add_waypoint" }
func (AddWaypoint) commandSeal()        {}

// RemoveWaypoint drops a route waypoint.
type RemoveWaypoint struct {
	ID string `json:"id"`
}

func (RemoveWaypoint) CommandType() string { return "remove_waypoint" }
func (RemoveWaypoint) commandSeal()        {}

// ClearWaypoints empties the waypoint list.
type ClearWaypoints struct{}

func (ClearWaypoints) CommandType() string { return "clear_waypoints" }
func (ClearWaypoints) commandSeal()        {}

// MoveWaypoint swaps a waypoint with its neighbor.
type MoveWaypoint struct {
	Index     int `json:"index"`
	Direction int `json:"direction"`
}

func (MoveWaypoint) CommandType() string { return "move_waypoint" }
func (MoveWaypoint) commandSeal()        {}

// MarkPlayed records playback reaching a node.
type MarkPlayed struct {
	ID string `json:"id"`
}

func (MarkPlayed) CommandType() string { return "mark_played" }
func (MarkPlayed) commandSeal()        {}

// UndoRouteAction reverts the last reversible route edit.
type UndoRouteAction struct{}

func (UndoRouteAction) CommandType() string { return "undo_route_action" }
func (UndoRouteAction) commandSeal()        {}

// Execute runs cmd. Route rejections and unknown nodes come back as errors
// and leave the state unchanged.
func (e *Engine) Execute(cmd Command) error {
	s := e.store
	var err error
	switch c := cmd.(type) {
	case SelectNodes:
		s.SetSelectedNodes(c.IDs)
	case AddToSelection:
		s.AddToSelection(c.ID)
	case RemoveFromSelection:
		s.RemoveFromSelection(c.ID)
	case ClearSelection:
		s.ClearSelection()
	case HoverNode:
		s.SetHoveredNode(c.ID)
	case HighlightPath:
		s.SetHighlightedPath(c.IDs)
	case SetVisibleNodes:
		s.SetVisibleNodeIDs(c.IDs)
	case SetVisibleEdges:
		s.SetVisibleEdgeIDs(c.IDs)
	case ExcludeNodes:
		s.SetExcludedNodeIDs(c.IDs)
	case ClearFilters:
		s.ClearVisibilityFilters()
	case SetPosition:
		err = s.SetNodePosition(c.ID, c.X, c.Y)
	case ActivateRoute:
		e.route.Activate()
	case DeactivateRoute:
		e.route.Deactivate()
	case SetStartNode:
		err = e.route.SetStartNode(c.ID)
	case SetEndNode:
		err = e.route.SetEndNode(c.ID)
	case AddWaypoint:
		err = e.route.AddWaypoint(c.ID)
	case RemoveWaypoint:
		err = e.route.RemoveWaypoint(c.ID)
	case ClearWaypoints:
		err = e.route.ClearWaypoints()
	case MoveWaypoint:
		err = e.route.MoveWaypoint(c.Index, c.Direction)
	case MarkPlayed:
		err = e.route.MarkPlayed(c.ID)
	case UndoRouteAction:
		e.route.UndoLastAction()
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		e.logger.Info("command rejected", "action", "execute", "command", cmd.CommandType(), "error", err)
		return err
	}
	e.metrics.ObserveGraph(s.Stats())
	e.logger.Debug("command executed", "action", "execute", "command", cmd.CommandType())
	return nil
}

// UnmarshalCommand decodes a command from JSON with a "type" discriminator.
func UnmarshalCommand(data []byte) (Command, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal command type: %w", err)
	}

	switch envelope.Type {
	case "select_nodes":
		return decodeCommand[SelectNodes](data)
	case "add_to_selection":
		return decodeCommand[AddToSelection](data)
	case "remove_from_selection":
		return decodeCommand[RemoveFromSelection](data)
	case "clear_selection":
		return ClearSelection{}, nil
	case "hover_node":
		return decodeCommand[HoverNode](data)
	case "highlight_path":
		return decodeCommand[HighlightPath](data)
	case "set_visible_nodes":
		return decodeCommand[SetVisibleNodes](data)
	case "set_visible_edges":
		return decodeCommand[SetVisibleEdges](data)
	case "exclude_nodes":
		return decodeCommand[ExcludeNodes](data)
	case "clear_filters":
		return ClearFilters{}, nil
	case "set_position":
		return decodeCommand[SetPosition](data)
	case "activate_route":
		return ActivateRoute{}, nil
	case "deactivate_route":
		return DeactivateRoute{}, nil
	case "set_start_node":
		return decodeCommand[SetStartNode](data)
	case "set_end_node":
		return decodeCommand[SetEndNode](data)
	case "add_waypoint":
		return decodeCommand[AddWaypoint](data)
	case "remove_waypoint":
		return decodeCommand[RemoveWaypoint](data)
	case "clear_waypoints":
		return ClearWaypoints{}, nil
	case "move_waypoint":
		return decodeCommand[MoveWaypoint](data)
	case "mark_played":
		return decodeCommand[MarkPlayed](data)
	case "undo_route_action":
		return UndoRouteAction{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, envelope.Type)
	}
}

func decodeCommand[T Command](data []byte) (Command, error) {
	var c T
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", c.CommandType(), err)
	}
	return c, nil
}
