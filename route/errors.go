// ABOUTME: Sentinel errors for rejected route mutations.
// ABOUTME: The rejection message is also kept on the route state for display.
package route

import "errors"

var (
	// ErrRouteInactive indicates a mutation while route mode is off.
	ErrRouteInactive = errors.New("route mode is not active")

	// ErrUnknownNode indicates a mutation naming a node the graph does not hold.
	ErrUnknownNode = errors.New("unknown node")

	// ErrStartLocked indicates an attempt to move the start after playback began.
	ErrStartLocked = errors.New("start node cannot change once playback has begun")

	// ErrInvalidDirection indicates a waypoint move other than one slot up or down.
	ErrInvalidDirection = errors.New("direction must be -1 or 1")
)
