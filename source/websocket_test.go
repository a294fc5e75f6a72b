// ABOUTME: Tests for WebSocketStream against an in-process upgrader: delivery, decode failures, reconnects, give-up.
package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/metrics"
	"github.com/2389-research/playgraph/source"
)

// feedServer upgrades every request, writes frames, then either holds the
// connection open until the client leaves or hangs up.
func feedServer(t *testing.T, frames []string, hangUp bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		conns.Add(1)
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if hangUp {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collect(ch chan<- event.Event) source.Sink {
	return func(ctx context.Context, ev event.Event) error {
		select {
		case ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func receive(t *testing.T, ch <-chan event.Event, n int) []event.Event {
	t.Helper()
	var got []event.Event
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("received %d events, want %d", len(got), n)
		}
	}
	return got
}

func TestWebSocketStreamDeliversInOrderAndSkipsGarbage(t *testing.T) {
	srv, _ := feedServer(t, []string{
		`{"type":"nodes_added","payload":[{"id":"t1","kind":"track"}]}`,
		`not json`,
		`{"nodes":[{"id":"t2","kind":"track"}],"edges":[]}`,
	}, false)

	m := metrics.New()
	stream := source.NewWebSocketStream(wsURL(srv), nil, m)
	ch := make(chan event.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx, collect(ch)) }()

	got := receive(t, ch, 2)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run after cancel = %v, want nil", err)
	}

	if got[0].Type != event.TypeNodesAdded || got[1].Type != event.TypeSnapshot {
		t.Errorf("types = %s, %s; want %s, %s", got[0].Type, got[1].Type, event.TypeNodesAdded, event.TypeSnapshot)
	}
	if v := testutil.ToFloat64(m.IngestErrors); v != 1 {
		t.Errorf("ingest errors = %v, want 1", v)
	}
}

func TestWebSocketStreamReconnectsAfterHangUp(t *testing.T) {
	srv, conns := feedServer(t, []string{`{"type":"nodes_removed","payload":["t1"]}`}, true)

	m := metrics.New()
	stream := source.NewWebSocketStream(wsURL(srv), nil, m)
	stream.ReconnectInterval = 10 * time.Millisecond
	ch := make(chan event.Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx, collect(ch)) }()

	receive(t, ch, 3)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run after cancel = %v, want nil", err)
	}
	if n := conns.Load(); n < 3 {
		t.Errorf("connections = %d, want at least 3", n)
	}
	if v := testutil.ToFloat64(m.StreamReconnect.WithLabelValues("websocket")); v < 2 {
		t.Errorf("reconnects = %v, want at least 2", v)
	}
}

func TestWebSocketStreamGivesUpAfterMaxReconnects(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	m := metrics.New()
	stream := source.NewWebSocketStream(url, nil, m)
	stream.ReconnectInterval = time.Millisecond
	stream.MaxReconnects = 2

	err := stream.Run(context.Background(), collect(make(chan event.Event, 1)))
	if !errors.Is(err, source.ErrStreamClosed) {
		t.Fatalf("Run = %v, want ErrStreamClosed", err)
	}
	if v := testutil.ToFloat64(m.StreamReconnect.WithLabelValues("websocket")); v != 2 {
		t.Errorf("reconnects = %v, want 2", v)
	}
}

func TestWebSocketStreamStopsOnSinkError(t *testing.T) {
	srv, _ := feedServer(t, []string{`{"type":"nodes_added","payload":[]}`}, false)
	stop := errors.New("handle closed")

	stream := source.NewWebSocketStream(wsURL(srv), nil, nil)
	err := stream.Run(context.Background(), func(context.Context, event.Event) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("Run = %v, want sink error", err)
	}
}

func TestNATSStreamReportsUnreachableServer(t *testing.T) {
	stream := source.NewNATSStream("nats://127.0.0.1:1", "graph.changes", nil, nil)
	stream.MaxReconnects = -1
	if err := stream.Run(context.Background(), collect(make(chan event.Event, 1))); err == nil {
		t.Fatal("expected connect error")
	}
}
