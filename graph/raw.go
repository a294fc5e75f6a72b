// ABOUTME: RawNode and RawEdge are inbound records as they arrive on the wire, before admission.
// ABOUTME: Decoding resolves field aliases; Normalize turns a raw node into a strict Node or rejects it.
package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// RawNode is an inbound node record. Kind is the unvalidated discriminator;
// anything other than track or song is rejected by Normalize.
type RawNode struct {
	ID       string
	Kind     string
	X        *float64
	Y        *float64
	Metadata map[string]any
}

var (
	nodeKindKeys = []string{"kind", "type", "node_type", "category"}
	edgeTypeKeys = []string{"type", "relationship", "relation", "edge_type", "label"}
)

// normalizeKind maps a raw kind onto an admitted Kind.
func normalizeKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "track", "song":
		return KindTrack, true
	default:
		return "", false
	}
}

// IsTrack reports whether the raw kind is one the store admits.
func (r RawNode) IsTrack() bool {
	_, ok := normalizeKind(r.Kind)
	return ok
}

// Normalize validates the record and returns the strict node it describes.
func (r RawNode) Normalize() (Node, error) {
	if strings.TrimSpace(r.ID) == "" {
		return Node{}, ErrMissingID
	}
	kind, ok := normalizeKind(r.Kind)
	if !ok {
		return Node{}, fmt.Errorf("%w: %q (node %s)", ErrUnsupportedKind, r.Kind, r.ID)
	}
	n := Node{
		ID:       r.ID,
		Kind:     kind,
		Metadata: maps.Clone(r.Metadata),
	}
	if r.X != nil {
		n.X = *r.X
	}
	if r.Y != nil {
		n.Y = *r.Y
	}
	return n, nil
}

// UnmarshalJSON accepts string or numeric ids and any of the kind aliases.
// Unrecognized fields are kept as metadata; a nested "metadata" object is
// merged in first and wins over top-level keys of the same name.
func (r *RawNode) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*r = RawNode{}
	r.ID = scalarString(fields["id"])
	r.Kind = firstString(fields, nodeKindKeys)
	r.X = optionalFloat(fields["x"])
	r.Y = optionalFloat(fields["y"])

	consumed := map[string]bool{"id": true, "x": true, "y": true}
	for _, k := range nodeKindKeys {
		consumed[k] = true
	}
	r.Metadata, err = collectMetadata(fields, consumed)
	return err
}

// MarshalJSON writes the canonical field names.
func (r RawNode) MarshalJSON() ([]byte, error) {
	type rawNodeJSON struct {
		ID       string         `json:"id"`
		Kind     string         `json:"kind,omitempty"`
		X        *float64       `json:"x,omitempty"`
		Y        *float64       `json:"y,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	return json.Marshal(rawNodeJSON(r))
}

// RawEdge is an inbound edge record. Source/Target are the canonical endpoint
// fields; SourceID/TargetID hold the alias spellings (source_id/target_id,
// else from/to) when those were used.
type RawEdge struct {
	ID       string
	Source   string
	Target   string
	SourceID string
	TargetID string
	Type     string
	Metadata map[string]any
}

// Endpoints resolves the source and target ids from the canonical or alias
// fields. ok is false when either endpoint is missing.
func (r RawEdge) Endpoints() (source, target string, ok bool) {
	source = r.Source
	if source == "" {
		source = r.SourceID
	}
	target = r.Target
	if target == "" {
		target = r.TargetID
	}
	return source, target, source != "" && target != ""
}

// EffectiveID returns the explicit id, or the deterministic source->target id.
func (r RawEdge) EffectiveID() string {
	if r.ID != "" {
		return r.ID
	}
	source, target, ok := r.Endpoints()
	if !ok {
		return ""
	}
	return EdgeID(source, target)
}

// UnmarshalJSON accepts source/target or source_id/target_id and any of the
// relation-type aliases.
func (r *RawEdge) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*r = RawEdge{}
	r.ID = scalarString(fields["id"])
	r.Source = scalarString(fields["source"])
	r.Target = scalarString(fields["target"])
	r.SourceID = firstScalar(fields, "source_id", "from")
	r.TargetID = firstScalar(fields, "target_id", "to")
	r.Type = firstString(fields, edgeTypeKeys)

	consumed := map[string]bool{"id": true, "source": true, "target": true, "source_id": true, "target_id": true, "from": true, "to": true}
	for _, k := range edgeTypeKeys {
		consumed[k] = true
	}
	r.Metadata, err = collectMetadata(fields, consumed)
	return err
}

// MarshalJSON writes the canonical field names with endpoints resolved.
func (r RawEdge) MarshalJSON() ([]byte, error) {
	source, target, _ := r.Endpoints()
	return json.Marshal(struct {
		ID       string         `json:"id,omitempty"`
		Source   string         `json:"source"`
		Target   string         `json:"target"`
		Type     string         `json:"type,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{r.ID, source, target, r.Type, r.Metadata})
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected JSON object, got %.20q", trimmed)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// scalarString reads a JSON string or number as a string; anything else is "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func firstScalar(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := scalarString(fields[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstString(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		var s string
		if raw, ok := fields[k]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func optionalFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return nil
	}
	return &f
}

func collectMetadata(fields map[string]json.RawMessage, consumed map[string]bool) (map[string]any, error) {
	md := map[string]any{}
	for k, raw := range fields {
		if consumed[k] || k == "metadata" {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", k, err)
		}
		md[k] = v
	}
	if raw, ok := fields["metadata"]; ok {
		var nested map[string]any
		if json.Unmarshal(raw, &nested) == nil {
			maps.Copy(md, nested)
		}
	}
	if len(md) == 0 {
		return nil, nil
	}
	return md, nil
}
