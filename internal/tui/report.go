package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rshade/guildsweep/internal/cleanup"
	"github.com/rshade/guildsweep/internal/discord"
	"github.com/rshade/guildsweep/internal/engine/batch"
)

// DeclinedMessage is shown when the confirmation prompt is declined.
const DeclinedMessage = "Cleanup operation was cancelled. All unconfirmed users should still be on the server."

// RenderReport renders the final cleanup message. width <= 0 renders without a box.
func RenderReport(report *cleanup.Report, width int) string {
	var content strings.Builder
	s := report.Summary

	switch {
	case s.Cancelled:
		content.WriteString(WarningStyle.Render("Cancelled by initiator"))
	default:
		content.WriteString(OKStyle.Render("Operation completed"))
	}
	if report.DryRun {
		content.WriteString(SubtleStyle.Render(" (dry run, nobody was kicked)"))
	}
	content.WriteString("\n")

	writeStat(&content, "Processed", fmt.Sprintf("%s members", FormatNumber(s.Processed)))
	writeStat(&content, "Kicked", fmt.Sprintf("%s members", FormatNumber(s.Succeeded)))
	writeStat(&content, "Skipped", fmt.Sprintf("%s members with the %s role", FormatNumber(s.Skipped), report.Role.Name))
	if untouched := s.Untouched(); untouched > 0 {
		writeStat(&content, "Untouched", fmt.Sprintf("%s members", FormatNumber(untouched)))
	}
	writeStat(&content, "Elapsed", FormatDuration(s.Elapsed))

	if len(s.Failed) > 0 {
		content.WriteString(CriticalStyle.Render("Failed to process the following members:"))
		content.WriteString("\n")
		for _, e := range s.Failed {
			fmt.Fprintf(&content, "- %s %s\n", discord.Mention(e.ID), SubtleStyle.Render(e.Name))
		}
	}

	switch {
	case report.Remaining == cleanup.RemainingUnknown:
		content.WriteString(SubtleStyle.Render("Could not recount members after the run."))
		content.WriteString("\n")
	case report.Remaining > 0:
		fmt.Fprintf(&content, "There exist %s user(s) that does not have the %s role\n",
			FormatNumber(report.Remaining), report.Role.Name)
	}

	content.WriteString(SubtleStyle.Render("Run " + report.RunID))

	if width <= 0 {
		return content.String() + "\n"
	}
	return BoxStyle.Width(width-borderPadding).Render(content.String()) + "\n"
}

func writeStat(b *strings.Builder, label, value string) {
	b.WriteString(LabelStyle.Render(fmt.Sprintf("%-10s ", label)))
	b.WriteString(ValueStyle.Render(value))
	b.WriteString("\n")
}

// RenderFailure renders an error that stopped the cleanup. Precondition
// failures are marked as such; nothing was touched in that case.
func RenderFailure(err error) string {
	var b strings.Builder
	if errors.Is(err, batch.ErrPrecondition) {
		b.WriteString(CriticalStyle.Render("Cleanup could not start"))
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render(err.Error()))
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render("No members were touched."))
	} else {
		b.WriteString(CriticalStyle.Render("Cleanup failed"))
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render(err.Error()))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderPlan describes what a confirmed run will do.
func RenderPlan(plan *cleanup.Plan, dryRun bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s members scanned, %s lack the %s role and will be kicked.\n",
		FormatNumber(len(plan.Entities)), FormatNumber(plan.Eligible), plan.Role.Name)
	if dryRun {
		b.WriteString("Dry run: no member will be notified or kicked.\n")
	}
	return b.String()
}
