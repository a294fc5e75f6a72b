// ABOUTME: Styled key/value reports for the inspect and replay commands.
// ABOUTME: Styles degrade to plain text when the output is not a terminal.
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/playgraph/graph"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(18)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

type row struct {
	label string
	value string
}

// report renders rows under title in a bordered box.
func report(w io.Writer, title string, rows []row) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(r.label))
		b.WriteString(r.value)
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

func statsRows(s graph.Stats) []row {
	return []row{
		{"nodes", fmt.Sprint(s.Nodes)},
		{"edges", fmt.Sprint(s.Edges)},
		{"visible nodes", fmt.Sprint(s.VisibleNodes)},
		{"visible edges", fmt.Sprint(s.VisibleEdges)},
	}
}

// invariantRow reports the store's consistency check.
func invariantRow(s *graph.Store) row {
	if err := s.CheckInvariants(); err != nil {
		return row{"invariants", badStyle.Render(err.Error())}
	}
	return row{"invariants", okStyle.Render("ok")}
}

// degreeRows summarizes neighbor counts: the busiest track and isolated ones.
func degreeRows(s *graph.Store) []row {
	var (
		busiest  string
		maxDeg   int
		isolated int
	)
	for _, n := range s.Nodes() {
		deg := len(s.Neighbors(n.ID))
		if deg == 0 {
			isolated++
		}
		if deg > maxDeg {
			busiest, maxDeg = n.ID, deg
		}
	}
	rows := []row{{"isolated tracks", fmt.Sprint(isolated)}}
	if busiest != "" {
		rows = append(rows, row{"busiest track", fmt.Sprintf("%s (%d neighbors)", busiest, maxDeg)})
	}
	return rows
}
