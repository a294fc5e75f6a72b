// ABOUTME: Engine is one session's graph state: store, route, error field and metrics behind a single owner.
// ABOUTME: Apply turns each inbound event into the narrowest store mutation; nothing it does returns an error.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/graph"
	"github.com/2389-research/playgraph/metrics"
	"github.com/2389-research/playgraph/route"
)

// ApplyResult summarizes what one event or load did to the store.
type ApplyResult struct {
	Type         string `json:"type"`
	Added        int    `json:"added"`
	Updated      int    `json:"updated"`
	Removed      int    `json:"removed"`
	Dropped      int    `json:"dropped"`
	UsedFallback bool   `json:"used_fallback,omitempty"`
	Ignored      bool   `json:"ignored,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Changed reports whether the store was mutated.
func (r ApplyResult) Changed() bool {
	return r.Added+r.Updated+r.Removed > 0
}

// Engine is not safe for concurrent use. Spawn wraps it in a Handle that
// serializes access.
type Engine struct {
	ID ulid.ULID

	store   *graph.Store
	route   *route.Manager
	metrics *metrics.Metrics
	logger  *slog.Logger

	err       error
	applied   uint64
	lastEvent ulid.ULID
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the collectors the engine records into.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine with an empty graph and an inactive route.
func New(opts ...Option) *Engine {
	e := &Engine{
		ID:     event.NewULID(),
		store:  graph.NewStore(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	e.route = route.NewManager(e.store)
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine", "session", e.ID.String())
	return e
}

// Store exposes the graph for reads. Mutate only through the engine so
// removals cascade into the route.
func (e *Engine) Store() *graph.Store { return e.store }

// Route returns a copy of the route state.
func (e *Engine) Route() route.Route { return e.route.Route() }

// Err returns the current ingestion error, or nil.
func (e *Engine) Err() error { return e.err }

// ErrorMessage returns the current ingestion error as text, or "".
func (e *Engine) ErrorMessage() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

// Applied returns the number of events applied and the id of the last one.
func (e *Engine) Applied() (uint64, ulid.ULID) { return e.applied, e.lastEvent }

// Apply folds one event into the store. Unknown event types are counted and
// skipped; structurally invalid payloads set the error field and change
// nothing.
func (e *Engine) Apply(ev event.Event) ApplyResult {
	start := time.Now()
	res := ApplyResult{Type: ev.Type}

	switch p := ev.Payload.(type) {
	case nil:
		e.metrics.RecordIgnored()
		e.logger.Debug("event ignored", "action", "apply", "type", ev.Type, "event_id", ev.ID.String())
		res.Ignored = true
		return res
	case event.NodesAdded:
		res = e.applyNodes(res, p.Nodes, e.store.AddNode)
	case event.NodesUpdated:
		res = e.applyNodes(res, p.Nodes, e.store.UpsertNode)
	case event.NodesRemoved:
		res = e.removeRefs(res, p.Refs, "node", event.Ref.NodeID, e.RemoveNode)
	case event.EdgesAdded:
		res = e.applyEdges(res, p.Edges, e.store.AddEdge)
	case event.EdgesUpdated:
		res = e.applyEdges(res, p.Edges, e.store.UpsertEdge)
	case event.EdgesRemoved:
		res = e.removeRefs(res, p.Refs, "edge", event.Ref.EdgeID, e.store.RemoveEdge)
	case event.Snapshot:
		res = e.Load(p)
	}

	e.applied++
	e.lastEvent = ev.ID
	e.metrics.RecordEvent(ev.Type, time.Since(start))
	e.metrics.ObserveGraph(e.store.Stats())
	e.logger.Debug("event applied", "action", "apply", "type", ev.Type, "event_id", ev.ID.String(),
		"added", res.Added, "updated", res.Updated, "removed", res.Removed, "dropped", res.Dropped)
	return res
}

func (e *Engine) applyNodes(res ApplyResult, nodes event.List[graph.RawNode], mutate func(graph.RawNode) (graph.Change, error)) ApplyResult {
	if !nodes.Usable() {
		return e.fail(res, fmt.Errorf("%w: %s nodes is %s", graph.ErrMalformedPayload, res.Type, nodes.State()))
	}
	e.err = nil
	e.countDropped(&res, "node", "undecodable", nodes.Rejected)
	for _, raw := range nodes.Items {
		change, err := mutate(raw)
		if err != nil {
			e.countDropped(&res, "node", dropReason(err), 1)
			continue
		}
		tally(&res, change)
	}
	return res
}

func (e *Engine) applyEdges(res ApplyResult, edges event.List[graph.RawEdge], mutate func(graph.RawEdge) (graph.Change, error)) ApplyResult {
	if !edges.Usable() {
		return e.fail(res, fmt.Errorf("%w: %s edges is %s", graph.ErrMalformedPayload, res.Type, edges.State()))
	}
	e.err = nil
	e.countDropped(&res, "edge", "undecodable", edges.Rejected)
	for _, raw := range edges.Items {
		change, err := mutate(raw)
		tally(&res, change)
		if err != nil {
			e.countDropped(&res, "edge", dropReason(err), 1)
		}
	}
	return res
}

func (e *Engine) removeRefs(res ApplyResult, refs event.List[event.Ref], record string, idOf func(event.Ref) string, remove func(string) graph.Change) ApplyResult {
	if !refs.Usable() {
		return e.fail(res, fmt.Errorf("%w: %s ids is %s", graph.ErrMalformedPayload, res.Type, refs.State()))
	}
	e.err = nil
	e.countDropped(&res, record, "undecodable", refs.Rejected)
	for _, ref := range refs.Items {
		id := idOf(ref)
		if id == "" {
			e.countDropped(&res, record, "missing_id", 1)
			continue
		}
		tally(&res, remove(id))
	}
	return res
}

// Load replaces the node and edge sets from a snapshot. A snapshot with
// either list absent or not an array leaves the store untouched and sets
// the error field.
func (e *Engine) Load(snap event.Snapshot) ApplyResult {
	res := ApplyResult{Type: event.TypeSnapshot}
	if err := snap.Check(); err != nil {
		return e.fail(res, err)
	}
	e.err = nil

	nodeRes, edgeRes := e.store.ApplySnapshot(snap.Nodes.Items, snap.Edges.Items)
	e.route.Prune(e.store.HasNode)
	res.Added = nodeRes.Admitted + edgeRes.Admitted
	res.UsedFallback = edgeRes.UsedFallback
	e.countDropped(&res, "node", "rejected", nodeRes.Rejected+snap.Nodes.Rejected)
	e.countDropped(&res, "edge", "rejected", edgeRes.Rejected+snap.Edges.Rejected)
	if edgeRes.UsedFallback {
		e.metrics.RecordFallback()
		e.logger.Warn("no edge validated, kept non-structural edges", "action", "load", "edges", edgeRes.Admitted)
	}

	stats := e.store.Stats()
	e.metrics.ObserveGraph(stats)
	e.logger.Info("snapshot loaded", "action", "load", "nodes", stats.Nodes, "edges", stats.Edges, "dropped", res.Dropped)
	return res
}

// LoadDocument validates and loads a raw {nodes, edges} document.
func (e *Engine) LoadDocument(data []byte) ApplyResult {
	res := ApplyResult{Type: event.TypeSnapshot}
	if err := event.ValidateSnapshotDocument(data); err != nil {
		return e.fail(res, fmt.Errorf("%w: %w", graph.ErrMalformedPayload, err))
	}
	snap, err := event.DecodeSnapshot(data)
	if err != nil {
		return e.fail(res, err)
	}
	return e.Load(snap)
}

// RemoveNode removes a node and every reference to it, route included.
func (e *Engine) RemoveNode(id string) graph.Change {
	change := e.store.RemoveNode(id)
	if change == graph.Removed {
		e.route.Forget(id)
	}
	return change
}

func (e *Engine) fail(res ApplyResult, err error) ApplyResult {
	e.err = err
	res.Error = err.Error()
	e.metrics.RecordMalformed()
	e.logger.Warn("ingestion rejected", "action", "apply", "type", res.Type, "error", err)
	return res
}

func (e *Engine) countDropped(res *ApplyResult, record, reason string, n int) {
	if n <= 0 {
		return
	}
	res.Dropped += n
	e.metrics.RecordDropped(record, reason, n)
}

func tally(res *ApplyResult, change graph.Change) {
	switch change {
	case graph.Inserted:
		res.Added++
	case graph.Updated:
		res.Updated++
	case graph.Removed:
		res.Removed++
	}
}

// dropReason maps a store error onto a metrics label.
func dropReason(err error) string {
	switch {
	case errors.Is(err, graph.ErrUnsupportedKind):
		return "unsupported_kind"
	case errors.Is(err, graph.ErrMissingID):
		return "missing_id"
	case errors.Is(err, graph.ErrDanglingEdge):
		return "dangling"
	case errors.Is(err, graph.ErrInvalidEdge):
		return "invalid"
	default:
		return "other"
	}
}
