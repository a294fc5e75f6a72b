// ABOUTME: Tests for config loading: defaults, YAML file, env overrides and validation failures.
package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/2389-research/playgraph/config"
)

var envKeys = []string{
	"BIND", "ALLOW_REMOTE", "AUTH_TOKEN", "SNAPSHOT_URL", "SNAPSHOT_FILE", "SNAPSHOT_SQLITE",
	"STREAM_KIND", "STREAM_URL", "STREAM_SUBJECT", "STREAM_RECONNECT_INTERVAL",
	"STREAM_MAX_RECONNECTS", "RECORD_PATH", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(config.EnvPrefix+"_"+k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playgraph.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
bind: 127.0.0.1:9000
snapshot:
  sqlite: /data/graph.db
stream:
  kind: websocket
  url: ws://graph.local/changes
  reconnect_interval: 500ms
  max_reconnects: 5
record_path: /tmp/events.jsonl
log:
  level: debug
  format: json
`)
	t.Setenv("PLAYGRAPH_STREAM_MAX_RECONNECTS", "9")
	t.Setenv("PLAYGRAPH_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &config.Config{
		Bind:     "127.0.0.1:9000",
		Snapshot: config.SnapshotConfig{SQLite: "/data/graph.db"},
		Stream: config.StreamConfig{
			Kind:              config.StreamWebSocket,
			URL:               "ws://graph.local/changes",
			Subject:           "playgraph.events",
			ReconnectInterval: 500 * time.Millisecond,
			MaxReconnects:     9,
		},
		RecordPath: "/tmp/events.jsonl",
		Log:        config.LogConfig{Level: "warn", Format: "json"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteAccessGuard(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{"remote without token", map[string]string{"ALLOW_REMOTE": "true"}, config.ErrRemoteWithoutToken},
		{"wildcard bind", map[string]string{"BIND": "0.0.0.0:7780"}, config.ErrNonLoopbackBind},
		{"hostname bind", map[string]string{"BIND": "example.com:7780"}, config.ErrNonLoopbackBind},
		{"empty host", map[string]string{"BIND": ":7780"}, config.ErrNonLoopbackBind},
		{"localhost", map[string]string{"BIND": "localhost:7780"}, nil},
		{"ipv6 loopback", map[string]string{"BIND": "[::1]:7780"}, nil},
		{"remote with token", map[string]string{"BIND": "0.0.0.0:7780", "ALLOW_REMOTE": "yes", "AUTH_TOKEN": "t"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(config.EnvPrefix+"_"+k, v)
			}
			_, err := config.Load("")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"two snapshot sources", map[string]string{"SNAPSHOT_URL": "http://x", "SNAPSHOT_FILE": "g.json"}},
		{"unknown stream kind", map[string]string{"STREAM_KIND": "kafka"}},
		{"stream without url", map[string]string{"STREAM_KIND": "nats"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "chatty"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"bad duration", map[string]string{"STREAM_RECONNECT_INTERVAL": "soon"}},
		{"bad max reconnects", map[string]string{"STREAM_MAX_RECONNECTS": "many"}},
		{"bad bool", map[string]string{"ALLOW_REMOTE": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(config.EnvPrefix+"_"+k, v)
			}
			if _, err := config.Load(""); !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("Load error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "stream: [unterminated\n")
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
