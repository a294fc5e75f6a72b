// ABOUTME: inspect command: loads one snapshot through the engine and reports what was admitted and dropped.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389-research/playgraph/engine"
	"github.com/2389-research/playgraph/source"
)

func inspectCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect [snapshot.json | graph.db]",
		Short: "Load a snapshot and summarize the admitted graph",
		Long: "Loads a snapshot from the given file (JSON, or SQLite for .db/.sqlite files) " +
			"or from the configured snapshot source, then reports counts, drops and consistency.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := snapshotSource(a.cfg.Snapshot)
			if len(args) == 1 {
				snap = fileSource(args[0])
			}
			if snap == nil {
				return errors.New("no snapshot: pass a file or configure snapshot.url, snapshot.file or snapshot.sqlite")
			}
			data, err := snap.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			eng := engine.New(engine.WithLogger(a.logger))
			res := eng.LoadDocument(data)
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(eng.View())
			}

			rows := statsRows(eng.Store().Stats())
			rows = append(rows,
				row{"dropped", fmt.Sprint(res.Dropped)},
				row{"edge fallback", fmt.Sprint(res.UsedFallback)},
			)
			rows = append(rows, degreeRows(eng.Store())...)
			rows = append(rows, invariantRow(eng.Store()))
			if res.Error != "" {
				rows = append(rows, row{"error", badStyle.Render(res.Error)})
			}
			report(a.stdout, "snapshot", rows)
			if res.Error != "" {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full view as JSON")
	return cmd
}

// fileSource picks the SQLite reader for database extensions, JSON otherwise.
func fileSource(path string) source.SnapshotSource {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return source.SQLiteSnapshot{Path: path}
	default:
		return source.FileSnapshot{Path: path}
	}
}
