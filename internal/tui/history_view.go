package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/guildsweep/internal/discord"
	"github.com/rshade/guildsweep/internal/history"
)

const (
	historyTimeLayout = "2006-01-02 15:04"
	// headerRows covers the header line, its border, and a spare line.
	headerRows = 3
)

// NoHistoryMessage is shown when no run has been recorded.
const NoHistoryMessage = "No cleanup runs recorded yet."

// NewHistoryTable lists recorded runs, newest first.
func NewHistoryTable(runs []*history.Run) table.Model {
	columns := []table.Column{
		{Title: "Run", Width: 26},       //nolint:mnd // Column width.
		{Title: "Started", Width: 16},   //nolint:mnd // Column width.
		{Title: "Status", Width: 10},    //nolint:mnd // Column width.
		{Title: "Role", Width: 14},      //nolint:mnd // Column width.
		{Title: "Processed", Width: 12}, //nolint:mnd // Column width.
		{Title: "Kicked", Width: 8},     //nolint:mnd // Column width.
		{Title: "Failed", Width: 8},     //nolint:mnd // Column width.
	}

	rows := make([]table.Row, len(runs))
	for i, r := range runs {
		status := string(r.Status)
		if r.DryRun {
			status += "*"
		}
		rows[i] = table.Row{
			r.ID,
			r.StartedAt.Local().Format(historyTimeLayout),
			status,
			r.Role,
			fmt.Sprintf("%s/%s", FormatNumber(r.Processed), FormatNumber(r.Total)),
			FormatNumber(r.Succeeded),
			FormatNumber(r.Failed),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+headerRows),
	)

	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return t
}

// RenderHistory renders the run table, or NoHistoryMessage when runs is empty.
func RenderHistory(runs []*history.Run) string {
	if len(runs) == 0 {
		return NoHistoryMessage + "\n"
	}
	var b strings.Builder
	b.WriteString(NewHistoryTable(runs).View())
	b.WriteString("\n")
	for _, r := range runs {
		if r.DryRun {
			b.WriteString(SubtleStyle.Render("* dry run"))
			b.WriteString("\n")
			break
		}
	}
	return b.String()
}

// RenderRun renders the details of one recorded run.
func RenderRun(run *history.Run) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Run " + run.ID))
	b.WriteString("\n")

	status := string(run.Status)
	if run.DryRun {
		status += " (dry run)"
	}
	writeStat(&b, "Status", status)
	writeStat(&b, "Guild", run.GuildID)
	writeStat(&b, "Role", run.Role)
	writeStat(&b, "Started", run.StartedAt.Local().Format(time.RFC3339))
	writeStat(&b, "Elapsed", FormatDuration(run.Elapsed))
	writeStat(&b, "Processed", fmt.Sprintf("%s of %s members",
		FormatNumber(run.Processed), FormatNumber(run.Total)))
	writeStat(&b, "Kicked", FormatNumber(run.Succeeded))
	writeStat(&b, "Skipped", FormatNumber(run.Skipped))
	if run.Remaining >= 0 {
		writeStat(&b, "Remaining", FormatNumber(run.Remaining))
	}
	if run.Error != "" {
		b.WriteString(CriticalStyle.Render(run.Error))
		b.WriteString("\n")
	}

	if len(run.Failures) > 0 {
		b.WriteString(CriticalStyle.Render("Failed to process the following members:"))
		b.WriteString("\n")
		for _, f := range run.Failures {
			fmt.Fprintf(&b, "- %s %s\n", discord.Mention(f.EntityID), SubtleStyle.Render(f.EntityName))
		}
	}
	return b.String()
}
