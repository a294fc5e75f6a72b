// ABOUTME: Payload is the sealed union of the seven inbound graph event bodies.
// ABOUTME: Delta bodies are arrays on the wire; the snapshot body is a {nodes, edges} object.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/2389-research/playgraph/graph"
)

// Event type names as they appear on the wire.
const (
	TypeNodesAdded   = "nodes_added"
	TypeNodesUpdated = "nodes_updated"
	TypeNodesRemoved = "nodes_removed"
	TypeEdgesAdded   = "edges_added"
	TypeEdgesUpdated = "edges_updated"
	TypeEdgesRemoved = "edges_removed"
	TypeSnapshot     = "snapshot"
)

// Types lists every recognized event type.
var Types = []string{
	TypeNodesAdded, TypeNodesUpdated, TypeNodesRemoved,
	TypeEdgesAdded, TypeEdgesUpdated, TypeEdgesRemoved,
	TypeSnapshot,
}

// Payload is one of the seven event bodies.
type Payload interface {
	PayloadType() string
	payloadSeal()
}

// NodesAdded inserts nodes whose ids are not yet present.
type NodesAdded struct {
	Nodes List[graph.RawNode]
}

func (NodesAdded) PayloadType() string { return TypeNodesAdded }
func (NodesAdded) payloadSeal()        {}

// NodesUpdated overwrites server fields of nodes, inserting absent ones.
type NodesUpdated struct {
	Nodes List[graph.RawNode]
}

func (NodesUpdated) PayloadType() string { return TypeNodesUpdated }
func (NodesUpdated) payloadSeal()        {}

// NodesRemoved deletes nodes by id.
type NodesRemoved struct {
	Refs List[Ref]
}

func (NodesRemoved) PayloadType() string { return TypeNodesRemoved }
func (NodesRemoved) payloadSeal()        {}

// EdgesAdded inserts edges whose ids are not yet present.
type EdgesAdded struct {
	Edges List[graph.RawEdge]
}

func (EdgesAdded) PayloadType() string { return TypeEdgesAdded }
func (EdgesAdded) payloadSeal()        {}

// EdgesUpdated overwrites edges, inserting absent ones.
type EdgesUpdated struct {
	Edges List[graph.RawEdge]
}

func (EdgesUpdated) PayloadType() string { return TypeEdgesUpdated }
func (EdgesUpdated) payloadSeal()        {}

// EdgesRemoved deletes edges by id or by source and target.
type EdgesRemoved struct {
	Refs List[Ref]
}

func (EdgesRemoved) PayloadType() string { return TypeEdgesRemoved }
func (EdgesRemoved) payloadSeal()        {}

// Snapshot is a full replacement of the node and edge sets. Both lists are
// required; a snapshot missing either one is rejected whole.
type Snapshot struct {
	Nodes List[graph.RawNode] `json:"nodes"`
	Edges List[graph.RawEdge] `json:"edges"`
}

func (Snapshot) PayloadType() string { return TypeSnapshot }
func (Snapshot) payloadSeal()        {}

// Check reports ErrMalformedPayload unless both lists arrived as arrays.
func (s Snapshot) Check() error {
	switch {
	case !s.Nodes.Usable():
		return fmt.Errorf("%w: nodes is %s", graph.ErrMalformedPayload, s.Nodes.State())
	case !s.Edges.Usable():
		return fmt.Errorf("%w: edges is %s", graph.ErrMalformedPayload, s.Edges.State())
	}
	return nil
}

// MarshalJSON omits absent lists.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	if s.Nodes.Set {
		data, err := json.Marshal(s.Nodes)
		if err != nil {
			return nil, err
		}
		out["nodes"] = data
	}
	if s.Edges.Set {
		data, err := json.Marshal(s.Edges)
		if err != nil {
			return nil, err
		}
		out["edges"] = data
	}
	return json.Marshal(out)
}

// DecodeSnapshot parses a bare {nodes, edges} document. Only unparseable
// JSON is an error; shape problems are left for Snapshot.Check.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return s, fmt.Errorf("%w: snapshot is not a JSON object", graph.ErrMalformedPayload)
	}
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// MarshalPayload writes the wire body of p.
func MarshalPayload(p Payload) ([]byte, error) {
	switch v := p.(type) {
	case NodesAdded:
		return json.Marshal(v.Nodes)
	case NodesUpdated:
		return json.Marshal(v.Nodes)
	case NodesRemoved:
		return json.Marshal(v.Refs)
	case EdgesAdded:
		return json.Marshal(v.Edges)
	case EdgesUpdated:
		return json.Marshal(v.Edges)
	case EdgesRemoved:
		return json.Marshal(v.Refs)
	case Snapshot:
		return json.Marshal(v)
	case nil:
		return nil, fmt.Errorf("cannot marshal nil payload")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, p.PayloadType())
	}
}

// UnmarshalPayload decodes the body of an event of the given type. Delta
// bodies may be a bare array or an object wrapping one.
func UnmarshalPayload(eventType string, data []byte) (Payload, error) {
	switch eventType {
	case TypeNodesAdded:
		var p NodesAdded
		err := decodeDelta(data, "nodes", &p.Nodes)
		return p, err
	case TypeNodesUpdated:
		var p NodesUpdated
		err := decodeDelta(data, "nodes", &p.Nodes)
		return p, err
	case TypeNodesRemoved:
		var p NodesRemoved
		err := decodeDelta(data, "ids", &p.Refs)
		return p, err
	case TypeEdgesAdded:
		var p EdgesAdded
		err := decodeDelta(data, "edges", &p.Edges)
		return p, err
	case TypeEdgesUpdated:
		var p EdgesUpdated
		err := decodeDelta(data, "edges", &p.Edges)
		return p, err
	case TypeEdgesRemoved:
		var p EdgesRemoved
		err := decodeDelta(data, "ids", &p.Refs)
		return p, err
	case TypeSnapshot:
		if len(bytes.TrimSpace(data)) == 0 {
			return Snapshot{}, nil
		}
		return DecodeSnapshot(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

func decodeDelta(data []byte, key string, into json.Unmarshaler) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return err
		}
		trimmed = []byte("null")
		for _, k := range []string{key, "items", "nodes", "edges", "ids"} {
			if inner, ok := wrapper[k]; ok {
				trimmed = inner
				break
			}
		}
	}
	return into.UnmarshalJSON(trimmed)
}
