// ABOUTME: Sentinel errors for graph ingestion and mutation.
// ABOUTME: The engine turns these into drop counters or its error field; none cross its boundary.
package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload indicates a full load whose node or edge list was
	// absent, null, or not an array.
	ErrMalformedPayload = errors.New("malformed graph payload")

	// ErrUnsupportedKind indicates a raw node whose kind is not a track.
	ErrUnsupportedKind = errors.New("unsupported node kind")

	// ErrMissingID indicates a raw node without an id.
	ErrMissingID = errors.New("node id is required")

	// ErrNodeNotFound indicates a mutation addressed a node the store does not hold.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDanglingEdge indicates an edge whose source or target is not in the store.
	ErrDanglingEdge = errors.New("edge references a missing node")

	// ErrInvalidEdge indicates an edge that is not a sequential transition.
	ErrInvalidEdge = errors.New("edge is not a sequential transition")
)

// InvariantError reports the first broken store invariant found by CheckInvariants.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Detail)
}
