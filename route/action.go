// ABOUTME: Action is the one-slot undo record: a tagged union over the three reversible route mutations.
// ABOUTME: A nil Action means there is nothing to undo.
package route

// Action records enough of the prior state to revert one mutation.
type Action interface {
	ActionType() string
	actionSeal()
}

// SetStartAction reverts SetStartNode by restoring Prev.
type SetStartAction struct {
	Prev string
}

func (SetStartAction) ActionType() string { return "set_start" }
func (SetStartAction) actionSeal()        {}

// SetEndAction reverts SetEndNode. The waypoint list is restored wholesale
// because SetEndNode may both demote the old end and drop the new one.
type SetEndAction struct {
	PrevEnd       string
	PrevWaypoints []string
}

func (SetEndAction) ActionType() string { return "set_end" }
func (SetEndAction) actionSeal()        {}

// AddWaypointAction reverts AddWaypoint by removing ID.
type AddWaypointAction struct {
	ID string
}

func (AddWaypointAction) ActionType() string { return "add_waypoint" }
func (AddWaypointAction) actionSeal()        {}
