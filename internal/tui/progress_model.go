package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/guildsweep/internal/discord"
	"github.com/rshade/guildsweep/internal/engine/batch"
)

const (
	maxBarWidth      = 60
	minBarWidth      = 10
	maxFailedListed  = 5
	cancelButtonText = "[c] Cancel"
	cancellingText   = "Cancelling ..."
)

// ProgressMsg carries a batch progress snapshot into the program.
type ProgressMsg struct {
	Snapshot batch.ProgressSnapshot
}

// FinalMsg carries the batch summary and ends the program.
type FinalMsg struct {
	Summary batch.Summary
}

// ProgressModel is the Bubble Tea model shown while a cleanup runs.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type ProgressModel struct {
	title      string
	snapshot   batch.ProgressSnapshot
	summary    *batch.Summary
	cancel     func()
	cancelling bool

	spinner spinner.Model
	bar     progress.Model
	width   int
}

// NewProgressModel creates the progress view for a batch of total entities.
// cancel is called once when the user presses c or ctrl+c.
func NewProgressModel(title string, total int, cancel func()) ProgressModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorSpinner)),
	)
	return ProgressModel{
		title:    title,
		snapshot: batch.ProgressSnapshot{Total: total},
		cancel:   cancel,
		spinner:  s,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		width:    defaultWidth,
	}
}

// Init starts the spinner (Bubble Tea interface).
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state (Bubble Tea interface).
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(min(msg.Width-borderPadding*2, maxBarWidth), minBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "c", "ctrl+c":
			return m.requestCancel(), nil
		}
		return m, nil

	case ProgressMsg:
		m.snapshot = msg.Snapshot
		return m, nil

	case FinalMsg:
		summary := msg.Summary
		m.summary = &summary
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) requestCancel() ProgressModel {
	if m.cancelling || m.summary != nil {
		return m
	}
	m.cancelling = true
	if m.cancel != nil {
		m.cancel()
	}
	return m
}

// Cancelling reports whether the user asked to cancel.
func (m ProgressModel) Cancelling() bool {
	return m.cancelling
}

// Done reports whether the final summary has arrived.
func (m ProgressModel) Done() bool {
	return m.summary != nil
}

// View renders the progress screen (Bubble Tea interface).
func (m ProgressModel) View() string {
	var b strings.Builder

	snap := m.snapshot
	if m.summary != nil {
		snap.Processed = m.summary.Processed
		snap.Succeeded = m.summary.Succeeded
		snap.Skipped = m.summary.Skipped
		snap.Failed = m.summary.Failed
		if snap.Total > 0 {
			snap.PercentComplete = float64(snap.Processed+snap.Skipped) / float64(snap.Total) * 100 //nolint:mnd // percent
		}
	}

	indicator := m.spinner.View()
	if m.summary != nil {
		indicator = OKStyle.Render("✓")
	}
	fmt.Fprintf(&b, "\n %s %s\n\n", indicator, HeaderStyle.Render(m.title))

	b.WriteString(" ")
	b.WriteString(m.bar.ViewAs(snap.PercentComplete / 100)) //nolint:mnd // percent to ratio
	b.WriteString("\n\n")

	b.WriteString(" ")
	b.WriteString(ProgressLine(snap))
	b.WriteString("\n")

	if len(snap.Failed) > 0 {
		b.WriteString(" ")
		b.WriteString(CriticalStyle.Render("Failed:"))
		b.WriteString("\n")
		for i, e := range snap.Failed {
			if i == maxFailedListed {
				fmt.Fprintf(&b, "   %s\n", SubtleStyle.Render(fmt.Sprintf("... and %d more", len(snap.Failed)-i)))
				break
			}
			fmt.Fprintf(&b, "   - %s %s\n", e.Name, SubtleStyle.Render(discord.Mention(e.ID)))
		}
	}

	if m.summary == nil {
		b.WriteString("\n ")
		if m.cancelling {
			b.WriteString(WarningStyle.Render(cancellingText))
		} else {
			b.WriteString(LabelStyle.Render(cancelButtonText))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ProgressLine renders the counters of a snapshot on one line.
func ProgressLine(snap batch.ProgressSnapshot) string {
	line := fmt.Sprintf("%s/~%s members processed, %s/%s kicked, %s skipped, %s failed (%.1f%%)",
		FormatNumber(snap.Processed+snap.Skipped),
		FormatNumber(snap.Total),
		FormatNumber(snap.Succeeded),
		FormatNumber(snap.Processed),
		FormatNumber(snap.Skipped),
		FormatNumber(len(snap.Failed)),
		snap.PercentComplete,
	)
	if eta := snap.EstimatedTimeRemaining(); eta > 0 {
		line += ", ETA " + FormatDuration(eta)
	}
	return line
}
