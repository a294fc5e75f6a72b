// ABOUTME: SQLiteSnapshot reads tracks and transitions from an exported SQLite database, read-only.
// ABOUTME: Rows become raw records so the engine applies the same admission rules as for wire snapshots.
package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/graph"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSnapshot reads a database with nodes and edges tables:
//
//	nodes(id TEXT, kind TEXT, x REAL, y REAL, metadata TEXT)
//	edges(id TEXT, source TEXT, target TEXT, type TEXT, metadata TEXT)
//
// Any column may be NULL; metadata holds a JSON object. Rows are admitted
// by the engine, so a row without an id is dropped there, not here.
// A snapshot replaces both sets, so a database missing either table is
// rejected rather than read as a partial snapshot.
type SQLiteSnapshot struct {
	Path string
}

// Snapshot implements SnapshotSource.
func (s SQLiteSnapshot) Snapshot(ctx context.Context) ([]byte, error) {
	snap, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// Read loads the tables into a snapshot payload.
func (s SQLiteSnapshot) Read(ctx context.Context) (event.Snapshot, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", s.Path))
	if err != nil {
		return event.Snapshot{}, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return event.Snapshot{}, fmt.Errorf("open sqlite %s: %w", s.Path, err)
	}

	for _, table := range []string{"nodes", "edges"} {
		ok, err := tableExists(ctx, db, table)
		if err != nil {
			return event.Snapshot{}, err
		}
		if !ok {
			return event.Snapshot{}, fmt.Errorf("%w: %s has no %s table", graph.ErrMalformedPayload, s.Path, table)
		}
	}

	nodes, err := readNodes(ctx, db)
	if err != nil {
		return event.Snapshot{}, err
	}
	edges, err := readEdges(ctx, db)
	if err != nil {
		return event.Snapshot{}, err
	}
	return event.Snapshot{Nodes: event.Items(nodes...), Edges: event.Items(edges...)}, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect schema: %w", err)
	}
	return n > 0, nil
}

func readNodes(ctx context.Context, db *sql.DB) ([]graph.RawNode, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, kind, x, y, metadata FROM nodes ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []graph.RawNode
	for rows.Next() {
		var (
			n                  graph.RawNode
			id, kind, metadata sql.NullString
			x, y               sql.NullFloat64
		)
		if err := rows.Scan(&id, &kind, &x, &y, &metadata); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		n.ID = id.String
		n.Kind = kind.String
		if x.Valid {
			n.X = &x.Float64
		}
		if y.Valid {
			n.Y = &y.Float64
		}
		if n.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func readEdges(ctx context.Context, db *sql.DB) ([]graph.RawEdge, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, source, target, type, metadata FROM edges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []graph.RawEdge
	for rows.Next() {
		var (
			e                                graph.RawEdge
			id, src, dst, relation, metadata sql.NullString
		)
		if err := rows.Scan(&id, &src, &dst, &relation, &metadata); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		e.ID = id.String
		e.Source = src.String
		e.Target = dst.String
		e.Type = relation.String
		if e.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("edge %s: %w", e.EffectiveID(), err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

func decodeMetadata(col sql.NullString) (map[string]any, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal([]byte(col.String), &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}
