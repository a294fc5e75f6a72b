// ABOUTME: Event is the envelope for one inbound graph change: id, type, timestamp and typed payload.
// ABOUTME: Unknown types decode without error and carry a nil payload so the engine can count and skip them.
package event

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrUnknownEventType indicates an event type outside the recognized set.
var ErrUnknownEventType = errors.New("unknown event type")

// NewULID generates a new ULID using crypto/rand entropy.
func NewULID() ulid.ULID {
	return ulid.MustNew(ulid.Now(), rand.Reader)
}

// Event is one inbound change. Type is kept verbatim even when Payload is
// nil because the type was not recognized.
type Event struct {
	ID        ulid.ULID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"-"`
}

// New wraps p in an envelope with a fresh id and the current time.
func New(p Payload) Event {
	return Event{
		ID:        NewULID(),
		Type:      p.PayloadType(),
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
}

// Known reports whether the event carries a recognized payload.
func (e Event) Known() bool { return e.Payload != nil }

type eventJSON struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON writes the envelope with the payload body inlined.
func (e Event) MarshalJSON() ([]byte, error) {
	j := eventJSON{ID: e.ID.String(), Type: e.Type}
	if !e.Timestamp.IsZero() {
		ts := e.Timestamp
		j.Timestamp = &ts
	}
	if e.Payload != nil {
		body, err := MarshalPayload(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal event payload: %w", err)
		}
		j.Payload = body
	}
	return json.Marshal(j)
}

// UnmarshalJSON reads the envelope. The body may be under "payload" or
// "data". A missing or non-ULID id is replaced with a fresh one and a
// missing timestamp with the receive time.
func (e *Event) UnmarshalJSON(data []byte) error {
	var j eventJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.Type == "" {
		return fmt.Errorf("%w: missing type", ErrUnknownEventType)
	}
	*e = Event{Type: j.Type}

	if id, err := ulid.Parse(j.ID); err == nil {
		e.ID = id
	} else {
		e.ID = NewULID()
	}
	if j.Timestamp != nil {
		e.Timestamp = *j.Timestamp
	} else {
		e.Timestamp = time.Now().UTC()
	}

	body := j.Payload
	if len(bytes.TrimSpace(body)) == 0 {
		body = j.Data
	}
	payload, err := UnmarshalPayload(j.Type, body)
	if errors.Is(err, ErrUnknownEventType) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", j.Type, err)
	}
	e.Payload = payload
	return nil
}

// Parse decodes one event. Snapshot documents without an envelope (a bare
// {nodes, edges} object) are accepted as snapshot events.
func Parse(data []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	if _, typed := fields["type"]; !typed {
		_, hasNodes := fields["nodes"]
		_, hasEdges := fields["edges"]
		if hasNodes || hasEdges {
			snap, err := DecodeSnapshot(data)
			if err != nil {
				return Event{}, err
			}
			return New(snap), nil
		}
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	return e, nil
}
