// ABOUTME: Server-sent events stream of every change the engine processes, one JSON object per event.
// ABOUTME: A slow subscriber misses changes and is sent a lagged event so it can reread the view.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := s.handle.Subscribe()
	defer s.handle.Unsubscribe(sub)
	subscriber := uuid.NewString()
	s.metrics.AddSubscribers(1)
	defer s.metrics.AddSubscribers(-1)
	s.logger.Info("subscriber attached", "action", "subscribe", "subscriber", subscriber)
	defer s.logger.Info("subscriber detached", "action", "unsubscribe", "subscriber", subscriber)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	var reported uint64

	for {
		select {
		case change, ok := <-sub.C:
			if !ok {
				return
			}
			if missed := sub.Missed(); missed > reported {
				if _, err := fmt.Fprintf(w, "event: lagged\ndata: {\"missed\":%d}\n\n", missed); err != nil {
					return
				}
				s.logger.Warn("subscriber missed changes", "action", "stream", "subscriber", subscriber, "missed", missed)
				reported = missed
			}
			data, err := json.Marshal(change)
			if err != nil {
				s.logger.Error("encode change", "action", "stream", "subscriber", subscriber, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: change\ndata: %s\n\n", change.Seq, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
