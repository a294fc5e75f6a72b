// ABOUTME: WebSocketStream dials the graph service's change feed and forwards each text frame as an event.
// ABOUTME: Dropped connections are redialed at a rate-limited pace until MaxReconnects is exhausted.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/2389-research/playgraph/metrics"
)

const (
	kindWebSocket = "websocket"

	// DefaultReconnectInterval paces redials when none is configured.
	DefaultReconnectInterval = 2 * time.Second
)

// WebSocketStream reads events from a WebSocket endpoint.
type WebSocketStream struct {
	URL    string
	Header http.Header

	// ReconnectInterval is the minimum spacing between dial attempts.
	ReconnectInterval time.Duration
	// MaxReconnects bounds consecutive failed redials: 0 means unlimited,
	// a negative value disables reconnecting.
	MaxReconnects int

	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewWebSocketStream creates a stream for url. logger and m may be nil.
func NewWebSocketStream(url string, logger *slog.Logger, m *metrics.Metrics) *WebSocketStream {
	return &WebSocketStream{
		URL:               url,
		ReconnectInterval: DefaultReconnectInterval,
		dialer:            &websocket.Dialer{HandshakeTimeout: 45 * time.Second},
		logger:            componentLogger(logger, kindWebSocket),
		metrics:           m,
	}
}

// Run implements Stream.
func (s *WebSocketStream) Run(ctx context.Context, sink Sink) error {
	interval := s.ReconnectInterval
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	dec := decoder{logger: s.logger, metrics: s.metrics}

	failures := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		conn, _, err := s.dialer.DialContext(ctx, s.URL, s.Header)
		if err == nil {
			failures = 0
			s.logger.Info("stream connected", "action", "connect", "url", s.URL)
			s.metrics.SetStreamConnected(kindWebSocket, true)
			err = s.consume(ctx, conn, dec, sink)
			s.metrics.SetStreamConnected(kindWebSocket, false)
		}

		if ctx.Err() != nil {
			return nil
		}
		var se sinkError
		if errors.As(err, &se) {
			return se.err
		}
		if s.MaxReconnects < 0 || (s.MaxReconnects > 0 && failures >= s.MaxReconnects) {
			return fmt.Errorf("%w: %s: %v", ErrStreamClosed, s.URL, err)
		}
		failures++
		s.metrics.RecordReconnect(kindWebSocket)
		s.logger.Warn("stream disconnected, reconnecting", "action", "reconnect", "url", s.URL,
			"attempt", failures, "error", err)
	}
}

// consume reads frames until the connection fails or ctx is done.
func (s *WebSocketStream) consume(ctx context.Context, conn *websocket.Conn, dec decoder, sink Sink) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		ev, ok := dec.decode(data)
		if !ok {
			continue
		}
		if err := sink(ctx, ev); err != nil {
			return sinkError{err}
		}
	}
}
