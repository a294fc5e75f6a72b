// ABOUTME: Config is the playgraph runtime configuration: defaults, then a YAML file, then PLAYGRAPH_* env vars.
// ABOUTME: Validate enforces the remote-access guard: non-loopback binds need allow_remote and an auth token.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrRemoteWithoutToken indicates remote access was enabled without a token.
	ErrRemoteWithoutToken = errors.New(
		"allow_remote is true but auth_token is not set; refusing to start without authentication",
	)
	// ErrNonLoopbackBind indicates a non-loopback bind without allow_remote.
	ErrNonLoopbackBind = errors.New(
		"bind is a non-loopback address but allow_remote is not true; set allow_remote and auth_token to allow remote access",
	)
	// ErrInvalidConfig wraps every other validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// Stream kinds.
const (
	StreamNone      = "none"
	StreamWebSocket = "websocket"
	StreamNATS      = "nats"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLAYGRAPH"

// Config holds everything the serve, inspect and replay commands need.
type Config struct {
	Bind        string         `yaml:"bind"`
	AllowRemote bool           `yaml:"allow_remote"`
	AuthToken   string         `yaml:"auth_token"`
	Snapshot    SnapshotConfig `yaml:"snapshot"`
	Stream      StreamConfig   `yaml:"stream"`
	RecordPath  string         `yaml:"record_path"`
	Log         LogConfig      `yaml:"log"`
}

// SnapshotConfig names where the initial full load comes from. At most one
// field may be set.
type SnapshotConfig struct {
	URL    string `yaml:"url"`
	File   string `yaml:"file"`
	SQLite string `yaml:"sqlite"`
}

// StreamConfig selects the live event stream.
type StreamConfig struct {
	Kind              string        `yaml:"kind"`
	URL               string        `yaml:"url"`
	Subject           string        `yaml:"subject"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	MaxReconnects     int           `yaml:"max_reconnects"`
}

// LogConfig sets the slog level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Bind: "127.0.0.1:7780",
		Stream: StreamConfig{
			Kind:              StreamNone,
			Subject:           "playgraph.events",
			ReconnectInterval: 2 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Bind, "BIND")
	setString(&c.AuthToken, "AUTH_TOKEN")
	setString(&c.Snapshot.URL, "SNAPSHOT_URL")
	setString(&c.Snapshot.File, "SNAPSHOT_FILE")
	setString(&c.Snapshot.SQLite, "SNAPSHOT_SQLITE")
	setString(&c.Stream.Kind, "STREAM_KIND")
	setString(&c.Stream.URL, "STREAM_URL")
	setString(&c.Stream.Subject, "STREAM_SUBJECT")
	setString(&c.RecordPath, "RECORD_PATH")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v := env("ALLOW_REMOTE"); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			c.AllowRemote = true
		case "false", "0", "no":
			c.AllowRemote = false
		default:
			return fmt.Errorf("%w: %s_ALLOW_REMOTE=%q is not a boolean", ErrInvalidConfig, EnvPrefix, v)
		}
	}
	if v := env("STREAM_RECONNECT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s_STREAM_RECONNECT_INTERVAL: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		c.Stream.ReconnectInterval = d
	}
	if v := env("STREAM_MAX_RECONNECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s_STREAM_MAX_RECONNECTS: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		c.Stream.MaxReconnects = n
	}
	return nil
}

func env(key string) string {
	return os.Getenv(EnvPrefix + "_" + key)
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

// Validate checks field values and the remote-access guard.
func (c *Config) Validate() error {
	if c.AllowRemote && c.AuthToken == "" {
		return ErrRemoteWithoutToken
	}
	if !c.AllowRemote && !loopback(c.Bind) {
		return fmt.Errorf("%w: bind=%s", ErrNonLoopbackBind, c.Bind)
	}

	set := 0
	for _, v := range []string{c.Snapshot.URL, c.Snapshot.File, c.Snapshot.SQLite} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("%w: snapshot: set only one of url, file, sqlite", ErrInvalidConfig)
	}

	switch c.Stream.Kind {
	case "", StreamNone:
		c.Stream.Kind = StreamNone
	case StreamWebSocket, StreamNATS:
		if c.Stream.URL == "" {
			return fmt.Errorf("%w: stream.url is required for %s streams", ErrInvalidConfig, c.Stream.Kind)
		}
		if c.Stream.Kind == StreamNATS && c.Stream.Subject == "" {
			return fmt.Errorf("%w: stream.subject is required for nats streams", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: stream.kind %q (want none, websocket or nats)", ErrInvalidConfig, c.Stream.Kind)
	}
	if c.Stream.ReconnectInterval < 0 {
		return fmt.Errorf("%w: stream.reconnect_interval must not be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// loopback reports whether bind listens only locally. Only 127.0.0.0/8, ::1
// and "localhost" count; an empty host means every interface.
func loopback(bind string) bool {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
