// ABOUTME: Handlers for the /api read views, the command endpoint and the event ingestion endpoint.
// ABOUTME: Reads run under the handle's read lock; writes go through the handle's single mutation goroutine.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/playgraph/engine"
	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/graph"
	"github.com/2389-research/playgraph/route"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine and route errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrHandleBusy), errors.Is(err, engine.ErrHandleClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, route.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, route.ErrRouteInactive), errors.Is(err, route.ErrStartLocked):
		return http.StatusConflict
	case errors.Is(err, route.ErrInvalidDirection), errors.Is(err, engine.ErrUnknownCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	}
	return body, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var (
		session string
		applied uint64
	)
	s.handle.Read(func(e *engine.Engine) {
		session = e.ID.String()
		applied, _ = e.Applied()
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"session": session,
		"applied": applied,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	var v engine.View
	s.handle.Read(func(e *engine.Engine) { v = e.View() })
	writeJSON(w, http.StatusOK, v)
}

// handleNodes lists nodes sorted by id; ?visible=true keeps visible ones only.
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	visibleOnly := r.URL.Query().Get("visible") == "true"
	var nodes []graph.Node
	s.handle.Read(func(e *engine.Engine) { nodes = e.Store().Nodes() })
	if visibleOnly {
		kept := nodes[:0]
		for _, n := range nodes {
			if n.Visible {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	type nodeResponse struct {
		Node      graph.Node `json:"node"`
		Neighbors []string   `json:"neighbors"`
	}
	var (
		resp nodeResponse
		ok   bool
	)
	s.handle.Read(func(e *engine.Engine) {
		resp.Node, ok = e.Store().Node(id)
		resp.Neighbors = e.Store().Neighbors(id)
	})
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEdges lists edges sorted by id; ?visible=true keeps visible ones only.
func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	visibleOnly := r.URL.Query().Get("visible") == "true"
	var edges []graph.Edge
	s.handle.Read(func(e *engine.Engine) { edges = e.Store().Edges() })
	if visibleOnly {
		kept := edges[:0]
		for _, ed := range edges {
			if ed.Visible {
				kept = append(kept, ed)
			}
		}
		edges = kept
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleEdge(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var (
		edge graph.Edge
		ok   bool
	)
	s.handle.Read(func(e *engine.Engine) { edge, ok = e.Store().Edge(id) })
	if !ok {
		writeError(w, http.StatusNotFound, "edge not found")
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (s *Server) handleAdjacency(w http.ResponseWriter, _ *http.Request) {
	var adj map[string][]string
	s.handle.Read(func(e *engine.Engine) { adj = e.Store().AdjacencyMap() })
	writeJSON(w, http.StatusOK, adj)
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	var sel graph.Selection
	s.handle.Read(func(e *engine.Engine) { sel = e.Store().Selection() })
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) handleRoute(w http.ResponseWriter, _ *http.Request) {
	var rt route.Route
	s.handle.Read(func(e *engine.Engine) { rt = e.Route() })
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var stats graph.Stats
	s.handle.Read(func(e *engine.Engine) { stats = e.Store().Stats() })
	writeJSON(w, http.StatusOK, stats)
}

type commandResponse struct {
	Command   string          `json:"command"`
	Selection graph.Selection `json:"selection"`
	Route     route.Route     `json:"route"`
	Stats     graph.Stats     `json:"stats"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	cmd, err := engine.UnmarshalCommand(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.handle.Execute(r.Context(), cmd); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := commandResponse{Command: cmd.CommandType()}
	s.handle.Read(func(e *engine.Engine) {
		resp.Selection = e.Store().Selection()
		resp.Route = e.Route()
		resp.Stats = e.Store().Stats()
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleEvent applies one posted event. Bare {nodes, edges} documents are
// taken as snapshots. A payload the engine rejects answers 422 with the
// result so callers see the error the engine now reports.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	ev, err := event.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.handle.Submit(r.Context(), ev)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	status := http.StatusOK
	if res.Error != "" {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// pathParam returns the unescaped URL parameter; edge ids contain "->".
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
