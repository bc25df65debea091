package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zenibako/boardsync/invocation"
	"github.com/zenibako/boardsync/reconcile"
	"github.com/zenibako/boardsync/syncer"
)

type summaryStyles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	row     lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newSummaryStyles(w io.Writer) summaryStyles {
	r := lipgloss.NewRenderer(w)
	return summaryStyles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		label:   r.NewStyle().Foreground(lipgloss.Color("245")),
		row:     r.NewStyle().PaddingLeft(2),
		warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// renderSummary formats a report for the terminal. Colours are dropped when
// w is not a terminal.
func renderSummary(w io.Writer, r *syncer.Report, runErr error) string {
	s := newSummaryStyles(w)
	var lines []string
	add := func(label, value string) {
		lines = append(lines, s.row.Render(s.label.Render(label+":")+" "+value))
	}

	title := "Push complete"
	if r.Direction == invocation.DirectionPull {
		title = "Pull complete"
	}
	if runErr != nil {
		title = strings.Replace(title, "complete", "failed", 1)
	}
	if r.DryRun {
		title += " [DRY RUN]"
	}
	if runErr != nil {
		lines = append(lines, s.failure.Render(title))
	} else {
		lines = append(lines, s.title.Render(title))
	}

	add("Board", r.BoardID)
	if r.GroupID != "" {
		add("Group", fmt.Sprintf("%s (ID: %s)", r.Group, r.GroupID))
	} else {
		add("Group", r.Group)
	}

	if r.Direction == invocation.DirectionPull {
		add("Cells", fmt.Sprintf("%d updated", len(r.CellUpdates)))
		if len(r.Unmatched) > 0 {
			add("Not in spreadsheet", strings.Join(r.Unmatched, ", "))
		}
	} else {
		add("Mode", string(r.Mode))
		if r.ArchivedGroupID != "" {
			add("Archived", r.ArchivedGroupID)
		}
		c := r.Counts()
		add("Items", fmt.Sprintf("%d created, %d updated, %d unchanged",
			c[reconcile.ActionCreate], c[reconcile.ActionUpdate], c[reconcile.ActionSkip]))
		add("Columns", fmt.Sprintf("%d created, %d deleted", len(r.ColumnsCreated), len(r.ColumnsDeleted)))
	}

	for _, warn := range r.Warnings {
		lines = append(lines, s.row.Render(s.warning.Render("Warning: "+warn)))
	}
	if runErr != nil {
		lines = append(lines, s.row.Render(s.failure.Render("Error: "+runErr.Error())))
	}
	return strings.Join(lines, "\n") + "\n"
}
