// ABOUTME: NATSStream subscribes to a NATS subject carrying graph change events.
// ABOUTME: Reconnection is delegated to the NATS client; Run returns once the connection closes for good.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/2389-research/playgraph/metrics"
)

const kindNATS = "nats"

// NATSStream reads events published on Subject.
type NATSStream struct {
	URL     string
	Subject string

	// ReconnectInterval is passed to the client as its reconnect wait.
	ReconnectInterval time.Duration
	// MaxReconnects follows WebSocketStream: 0 unlimited, negative never.
	MaxReconnects int

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewNATSStream creates a stream for subject on the server at url.
func NewNATSStream(url, subject string, logger *slog.Logger, m *metrics.Metrics) *NATSStream {
	return &NATSStream{
		URL:               url,
		Subject:           subject,
		ReconnectInterval: DefaultReconnectInterval,
		logger:            componentLogger(logger, kindNATS),
		metrics:           m,
	}
}

// options translates the stream settings into client options.
func (s *NATSStream) options(closed chan<- struct{}) []nats.Option {
	maxReconnects := s.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	} else if maxReconnects < 0 {
		maxReconnects = 0
	}
	wait := s.ReconnectInterval
	if wait <= 0 {
		wait = DefaultReconnectInterval
	}
	return []nats.Option{
		nats.Name("playgraph"),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(wait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.metrics.SetStreamConnected(kindNATS, false)
			s.logger.Warn("stream disconnected", "action", "disconnect", "url", s.URL, "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.metrics.RecordReconnect(kindNATS)
			s.metrics.SetStreamConnected(kindNATS, true)
			s.logger.Info("stream reconnected", "action", "reconnect", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(closed)
		}),
	}
}

// Run implements Stream. Messages are delivered to sink one at a time, in
// the order the subscription receives them.
func (s *NATSStream) Run(ctx context.Context, sink Sink) error {
	closed := make(chan struct{})
	nc, err := nats.Connect(s.URL, s.options(closed)...)
	if err != nil {
		return fmt.Errorf("connect to nats %s: %w", s.URL, err)
	}
	defer nc.Close()

	s.metrics.SetStreamConnected(kindNATS, true)
	defer s.metrics.SetStreamConnected(kindNATS, false)
	s.logger.Info("stream connected", "action", "connect", "url", nc.ConnectedUrl(), "subject", s.Subject)

	dec := decoder{logger: s.logger, metrics: s.metrics}
	sinkErr := make(chan error, 1)
	sub, err := nc.Subscribe(s.Subject, func(msg *nats.Msg) {
		ev, ok := dec.decode(msg.Data)
		if !ok {
			return
		}
		if err := sink(ctx, ev); err != nil {
			select {
			case sinkErr <- err:
			default:
			}
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-sinkErr:
		return err
	case <-closed:
		return fmt.Errorf("%w: %s", ErrStreamClosed, s.URL)
	}
}
