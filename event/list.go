// ABOUTME: List[T] is a JSON array field that remembers whether it was absent, null, malformed or present.
// ABOUTME: Elements that fail to decode are dropped and counted instead of failing the whole list.
package event

import (
	"bytes"
	"encoding/json"
)

// List distinguishes the states a collection field can arrive in:
//
//   - Set=false:             field absent
//   - Set=true, Valid=false: null or not an array
//   - Set=true, Valid=true:  an array; Items holds the decodable elements
type List[T any] struct {
	Set      bool
	Valid    bool
	Items    []T
	Rejected int
}

// Items returns a present list holding items.
func Items[T any](items ...T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Set: true, Valid: true, Items: items}
}

// Usable reports whether the list arrived as an array.
func (l List[T]) Usable() bool {
	return l.Set && l.Valid
}

// State names the list's arrival state for error messages.
func (l List[T]) State() string {
	switch {
	case !l.Set:
		return "absent"
	case !l.Valid:
		return "not an array"
	default:
		return "present"
	}
}

// UnmarshalJSON decodes element by element. Only a broken array body is an
// error; null and non-array values leave Valid false.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	*l = List[T]{Set: true}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return err
	}
	l.Valid = true
	l.Items = make([]T, 0, len(elems))
	for _, raw := range elems {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			l.Rejected++
			continue
		}
		l.Items = append(l.Items, v)
	}
	return nil
}

// MarshalJSON emits the items, or null when the list is not usable.
func (l List[T]) MarshalJSON() ([]byte, error) {
	if !l.Usable() {
		return []byte("null"), nil
	}
	if l.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Items)
}
