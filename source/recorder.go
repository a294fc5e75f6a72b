// ABOUTME: Recorder appends every inbound event to a JSONL log so a session can be replayed later.
// ABOUTME: ReadLog streams a log back in order; RepairLog drops a torn trailing line after a crash.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/2389-research/playgraph/event"
)

// maxLogLine bounds one recorded event; snapshots can be large.
const maxLogLine = 64 << 20

// Recorder is an append-only JSONL event log. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenRecorder opens (or creates) the log at path in append mode, creating
// parent directories as needed.
func OpenRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dirs: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Recorder{path: path, file: file}, nil
}

// Path returns the log file path.
func (r *Recorder) Path() string {
	return r.path
}

// Append writes ev as one line and fsyncs.
func (r *Recorder) Append(ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event line: %w", err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	return nil
}

// Tee returns a sink that records each event before passing it to next.
// A failed write is reported and the event is not forwarded.
func (r *Recorder) Tee(next Sink) Sink {
	return func(ctx context.Context, ev event.Event) error {
		if err := r.Append(ev); err != nil {
			return err
		}
		return next(ctx, ev)
	}
}

// Close closes the underlying file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// ReadLog calls fn for every event in the log at path, in order. Blank lines
// are skipped; an unparseable line stops the read with its line number.
func ReadLog(path string, fn func(event.Event) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return fmt.Errorf("parse event line %d: %w", lineNo, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan event log: %w", err)
	}
	return nil
}

// RepairLog rewrites the log keeping only parseable lines, via a temp file
// and rename. It returns the number of events kept.
func RepairLog(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open event log for repair: %w", err)
	}

	var kept []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev event.Event
		if json.Unmarshal([]byte(line), &ev) == nil {
			kept = append(kept, line)
		}
	}
	scanErr := scanner.Err()
	_ = file.Close()
	if scanErr != nil {
		return 0, fmt.Errorf("scan event log for repair: %w", scanErr)
	}

	tmpPath := path + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, line := range kept {
		_, _ = w.WriteString(line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("write repaired log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("fsync temp file: %w", err)
	}
	_ = tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("rename temp to log: %w", err)
	}
	return len(kept), nil
}
