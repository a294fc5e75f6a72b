// ABOUTME: Snapshot sources produce a full {nodes, edges} document for engine.LoadDocument.
// ABOUTME: HTTPSnapshot fetches it from the graph service; FileSnapshot reads it from disk.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// maxSnapshotBytes caps a fetched snapshot document.
const maxSnapshotBytes = 64 << 20

// SnapshotSource produces one full snapshot document.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// HTTPSnapshot fetches a snapshot with a GET request.
type HTTPSnapshot struct {
	URL    string
	Client *http.Client
	// Token, when set, is sent as a bearer token.
	Token string
}

// NewHTTPSnapshot returns a source for url with a 30 second client timeout.
func NewHTTPSnapshot(url, token string) *HTTPSnapshot {
	return &HTTPSnapshot{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Snapshot implements SnapshotSource.
func (s *HTTPSnapshot) Snapshot(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch snapshot: %s returned %s", s.URL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", maxSnapshotBytes)
	}
	return data, nil
}

// FileSnapshot reads a snapshot document from a local file.
type FileSnapshot struct {
	Path string
}

// Snapshot implements SnapshotSource.
func (s FileSnapshot) Snapshot(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return data, nil
}
