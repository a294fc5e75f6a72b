// ABOUTME: Inbound adapters that feed the engine: snapshot loaders, live event streams and the JSONL recorder.
// ABOUTME: Streams hand decoded events to a Sink in arrival order and reconnect on their own.
package source

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/metrics"
)

// ErrStreamClosed indicates a stream stopped for good and will not reconnect.
var ErrStreamClosed = errors.New("event stream closed")

// Sink receives decoded events. A non-nil error stops the stream.
type Sink func(ctx context.Context, ev event.Event) error

// Stream is a live event source. Run blocks until ctx is done (returning
// nil) or the stream gives up (returning an error).
type Stream interface {
	Run(ctx context.Context, sink Sink) error
}

// sinkError marks a failure reported by the sink rather than the transport.
type sinkError struct{ err error }

func (e sinkError) Error() string { return "sink: " + e.err.Error() }
func (e sinkError) Unwrap() error { return e.err }

// decoder parses wire messages, logging and counting the ones it cannot read.
type decoder struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func (d decoder) decode(data []byte) (event.Event, bool) {
	ev, err := event.Parse(data)
	if err != nil {
		d.logger.Warn("undecodable message", "action", "decode", "error", err, "bytes", len(data))
		d.metrics.RecordMalformed()
		return event.Event{}, false
	}
	return ev, true
}

// componentLogger tags l for the named transport, discarding output when l is nil.
func componentLogger(l *slog.Logger, transport string) *slog.Logger {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.With("component", "source", "transport", transport)
}
