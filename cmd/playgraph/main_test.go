// ABOUTME: Tests for the playgraph CLI: version, inspect, replay, serve lifecycle and logger construction.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/playgraph/config"
	"github.com/2389-research/playgraph/engine"
	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/graph"
	"github.com/2389-research/playgraph/source"
)

const snapshotDoc = `{"nodes":[{"id":"t1","kind":"track"},{"id":"t2","kind":"track"},{"id":"t3","kind":"track"},{"id":"a1","kind":"artist"}],
"edges":[{"source":"t1","target":"t2","type":"next"},{"source":"t1","target":"a1","type":"performed_by"}]}`

// isolate keeps the host environment and working directory out of config loading.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"BIND", "ALLOW_REMOTE", "AUTH_TOKEN", "SNAPSHOT_URL", "SNAPSHOT_FILE",
		"SNAPSHOT_SQLITE", "STREAM_KIND", "STREAM_URL", "RECORD_PATH", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(config.EnvPrefix+"_"+k, "")
	}
	return t.TempDir()
}

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionCommand(t *testing.T) {
	code, out, _ := run(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if out != "playgraph dev\n" {
		t.Errorf("output = %q", out)
	}
}

func TestInspectReportsAdmittedGraph(t *testing.T) {
	dir := isolate(t)
	path := writeTemp(t, dir, "graph.json", snapshotDoc)

	code, out, errOut := run(t, "inspect", path, "--env-file", filepath.Join(dir, ".env"))
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %s", code, errOut)
	}
	for _, want := range []string{"snapshot", "nodes", "dropped", "isolated tracks", "busiest track", "t1 (1 neighbors)", "invariants", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestInspectJSON(t *testing.T) {
	dir := isolate(t)
	path := writeTemp(t, dir, "graph.json", snapshotDoc)

	code, out, errOut := run(t, "inspect", path, "--json", "--env-file", filepath.Join(dir, ".env"))
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %s", code, errOut)
	}
	var v engine.View
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if v.Stats.Nodes != 3 || v.Stats.Edges != 1 {
		t.Errorf("stats = %+v, want 3 nodes and 1 edge", v.Stats)
	}
}

func TestInspectFailsOnMalformedSnapshot(t *testing.T) {
	dir := isolate(t)
	path := writeTemp(t, dir, "graph.json", `{"nodes":5}`)

	code, _, errOut := run(t, "inspect", path, "--env-file", filepath.Join(dir, ".env"))
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut, "malformed") {
		t.Errorf("stderr = %q, want malformed payload error", errOut)
	}
}

func TestInspectWithoutSource(t *testing.T) {
	dir := isolate(t)
	if code, _, _ := run(t, "inspect", "--env-file", filepath.Join(dir, ".env")); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestReplayRecordedSession(t *testing.T) {
	dir := isolate(t)
	logPath := filepath.Join(dir, "events.jsonl")
	rec, err := source.OpenRecorder(logPath)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := event.DecodeSnapshot([]byte(snapshotDoc))
	if err != nil {
		t.Fatal(err)
	}
	events := []event.Event{
		event.New(snap),
		event.New(event.NodesAdded{Nodes: event.Items(graph.RawNode{ID: "t4", Kind: "track"})}),
		{ID: event.NewULID(), Type: "playlist_renamed", Timestamp: time.Now().UTC()},
		event.New(event.NodesRemoved{Refs: event.Items(event.Ref{ID: "t2"})}),
	}
	for _, ev := range events {
		if err := rec.Append(ev); err != nil {
			t.Fatal(err)
		}
	}
	_ = rec.Close()

	code, out, errOut := run(t, "replay", logPath, "--json", "--env-file", filepath.Join(dir, ".env"))
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %s", code, errOut)
	}
	var got struct {
		Totals replayTotals `json:"totals"`
		View   engine.View  `json:"view"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Totals.Events != 4 || got.Totals.Ignored != 1 {
		t.Errorf("totals = %+v, want 4 events with 1 ignored", got.Totals)
	}
	if got.View.Stats.Nodes != 3 || got.View.Stats.Edges != 0 {
		t.Errorf("final stats = %+v, want 3 nodes and no edges", got.View.Stats)
	}
}

func TestServeLoadsSnapshotAndShutsDown(t *testing.T) {
	dir := isolate(t)
	cfg := config.Default()
	cfg.Snapshot.File = writeTemp(t, dir, "graph.json", snapshotDoc)
	cfg.RecordPath = filepath.Join(dir, "events.jsonl")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base := "http://" + ln.Addr().String()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), ln) }()

	var nodes []graph.Node
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/api/nodes")
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&nodes)
			_ = resp.Body.Close()
		}
		if err == nil && len(nodes) == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("serve never exposed the snapshot: nodes=%d err=%v", len(nodes), err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}

	var recorded int
	if err := source.ReadLog(cfg.RecordPath, func(event.Event) error { recorded++; return nil }); err != nil {
		t.Fatal(err)
	}
	if recorded != 1 {
		t.Errorf("recorded events = %d, want the initial snapshot", recorded)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("json handler output not JSON: %v (%q)", err, out)
	}
	if rec["component"] != "test" {
		t.Errorf("component = %v, want test", rec["component"])
	}
}
