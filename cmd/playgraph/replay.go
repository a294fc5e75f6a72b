// ABOUTME: replay command: feeds a recorded JSONL session through a fresh engine and reports the final state.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389-research/playgraph/engine"
	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/source"
)

// replayTotals counts what the replayed events did.
type replayTotals struct {
	Events   int `json:"events"`
	Ignored  int `json:"ignored"`
	Rejected int `json:"rejected"`
	Added    int `json:"added"`
	Updated  int `json:"updated"`
	Removed  int `json:"removed"`
	Dropped  int `json:"dropped"`
}

func (t *replayTotals) add(res engine.ApplyResult) {
	t.Events++
	switch {
	case res.Ignored:
		t.Ignored++
	case res.Error != "":
		t.Rejected++
	}
	t.Added += res.Added
	t.Updated += res.Updated
	t.Removed += res.Removed
	t.Dropped += res.Dropped
}

func replayCmd(a *app) *cobra.Command {
	var (
		repair bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Replay a recorded event log through a fresh engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if repair {
				kept, err := source.RepairLog(path)
				if err != nil {
					return err
				}
				a.logger.Info("log repaired", "component", "replay", "path", path, "kept", kept)
			}

			eng := engine.New(engine.WithLogger(a.logger))
			var totals replayTotals
			if err := source.ReadLog(path, func(ev event.Event) error {
				totals.add(eng.Apply(ev))
				return nil
			}); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Totals replayTotals `json:"totals"`
					View   engine.View  `json:"view"`
				}{totals, eng.View()})
			}

			rows := []row{
				{"events", fmt.Sprint(totals.Events)},
				{"ignored", fmt.Sprint(totals.Ignored)},
				{"rejected", fmt.Sprint(totals.Rejected)},
				{"added", fmt.Sprint(totals.Added)},
				{"updated", fmt.Sprint(totals.Updated)},
				{"removed", fmt.Sprint(totals.Removed)},
				{"dropped", fmt.Sprint(totals.Dropped)},
			}
			rows = append(rows, statsRows(eng.Store().Stats())...)
			rows = append(rows, invariantRow(eng.Store()))
			if msg := eng.ErrorMessage(); msg != "" {
				rows = append(rows, row{"error", badStyle.Render(msg)})
			}
			report(a.stdout, "replay", rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "drop unparseable lines from the log before replaying")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print totals and the final view as JSON")
	return cmd
}
