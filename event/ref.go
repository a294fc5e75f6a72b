// ABOUTME: Ref identifies a node or edge in a removal event: a bare id, or a partial object.
package event

import (
	"bytes"
	"encoding/json"

	"github.com/2389-research/playgraph/graph"
)

// Ref is a removal target. Edges may be named by source and target instead
// of an id.
type Ref struct {
	ID     string
	Source string
	Target string
}

// NodeID returns the referenced node id, or "" when the ref has none.
func (r Ref) NodeID() string { return r.ID }

// EdgeID returns the explicit id or the derived source->target id.
func (r Ref) EdgeID() string {
	if r.ID != "" {
		return r.ID
	}
	if r.Source == "" || r.Target == "" {
		return ""
	}
	return graph.EdgeID(r.Source, r.Target)
}

// UnmarshalJSON accepts a string, a number, or an object with id and/or
// source/target (including their aliases).
func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*r = Ref{}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var raw graph.RawEdge
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		r.ID = raw.ID
		r.Source, r.Target, _ = raw.Endpoints()
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		r.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	r.ID = n.String()
	return nil
}

// MarshalJSON writes a bare id when there is one.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.ID != "" {
		return json.Marshal(r.ID)
	}
	return json.Marshal(map[string]string{"source": r.Source, "target": r.Target})
}
