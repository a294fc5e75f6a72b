// ABOUTME: serve command: loads the initial snapshot, follows the live stream and exposes the HTTP interface.
// ABOUTME: HTTP server and stream run in one errgroup; either failing or a signal shuts both down.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389-research/playgraph/config"
	"github.com/2389-research/playgraph/engine"
	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/metrics"
	"github.com/2389-research/playgraph/server"
	"github.com/2389-research/playgraph/source"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with its HTTP interface and live event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.Bind)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", a.cfg.Bind, err)
			}
			return serve(ctx, a.cfg, a.logger, ln)
		},
	}
}

// serve runs until ctx is done or a component fails. It owns ln.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	m := metrics.New()
	eng := engine.New(engine.WithLogger(logger), engine.WithMetrics(m))
	handle := engine.Spawn(eng)
	defer handle.Close()

	sink := func(ctx context.Context, ev event.Event) error {
		_, err := handle.Submit(ctx, ev)
		return err
	}
	if cfg.RecordPath != "" {
		rec, err := source.OpenRecorder(cfg.RecordPath)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer func() { _ = rec.Close() }()
		sink = rec.Tee(sink)
		logger.Info("recording events", "component", "serve", "path", rec.Path())
	}

	if snap := snapshotSource(cfg.Snapshot); snap != nil {
		if err := loadSnapshot(ctx, snap, sink); err != nil {
			_ = ln.Close()
			return err
		}
	}

	stream := newStream(cfg.Stream, logger, m)
	srv := &http.Server{
		Handler: server.New(handle,
			server.WithLogger(logger),
			server.WithMetrics(m),
			server.WithAuthToken(cfg.AuthToken),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "component", "serve", "addr", ln.Addr().String(), "session", eng.ID.String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if stream != nil {
		g.Go(func() error {
			if err := stream.Run(gctx, sink); err != nil {
				return fmt.Errorf("%s stream: %w", cfg.Stream.Kind, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// snapshotSource picks the configured snapshot origin, or nil for none.
func snapshotSource(cfg config.SnapshotConfig) source.SnapshotSource {
	switch {
	case cfg.URL != "":
		return source.NewHTTPSnapshot(cfg.URL, "")
	case cfg.File != "":
		return source.FileSnapshot{Path: cfg.File}
	case cfg.SQLite != "":
		return source.SQLiteSnapshot{Path: cfg.SQLite}
	default:
		return nil
	}
}

// loadSnapshot checks the document's shape and hands it to sink as a
// snapshot event so it is applied, recorded and broadcast like any other.
func loadSnapshot(ctx context.Context, snap source.SnapshotSource, sink source.Sink) error {
	data, err := snap.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := event.ValidateSnapshotDocument(data); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	decoded, err := event.DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	return sink(ctx, event.New(decoded))
}

// newStream builds the configured live stream, or nil for none.
func newStream(cfg config.StreamConfig, logger *slog.Logger, m *metrics.Metrics) source.Stream {
	switch cfg.Kind {
	case config.StreamWebSocket:
		s := source.NewWebSocketStream(cfg.URL, logger, m)
		s.ReconnectInterval = cfg.ReconnectInterval
		s.MaxReconnects = cfg.MaxReconnects
		return s
	case config.StreamNATS:
		s := source.NewNATSStream(cfg.URL, cfg.Subject, logger, m)
		s.ReconnectInterval = cfg.ReconnectInterval
		s.MaxReconnects = cfg.MaxReconnects
		return s
	default:
		return nil
	}
}
