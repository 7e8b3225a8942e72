package tui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/guildsweep/internal/cleanup"
	"github.com/rshade/guildsweep/internal/discord"
	"github.com/rshade/guildsweep/internal/engine/batch"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "18,248", FormatNumber(18248))
	assert.Equal(t, "1,000,000", FormatNumber(1_000_000))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{1400 * time.Millisecond, "1s"},
		{45 * time.Second, "45s"},
		{5*time.Minute + 3*time.Second, "5m03s"},
		{time.Hour + 2*time.Minute + 5*time.Second, "1h02m05s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestProgressLine(t *testing.T) {
	snap := batch.ProgressSnapshot{
		Total:           2000,
		Processed:       1200,
		Succeeded:       1199,
		Skipped:         300,
		Failed:          []batch.Entity{{ID: "1"}},
		PercentComplete: 75,
		ElapsedTime:     150 * time.Second,
	}
	line := ProgressLine(snap)
	assert.Contains(t, line, "1,500/~2,000 members processed")
	assert.Contains(t, line, "1,199/1,200 kicked")
	assert.Contains(t, line, "300 skipped, 1 failed (75.0%)")
	assert.Contains(t, line, "ETA 50s")

	assert.NotContains(t, ProgressLine(batch.ProgressSnapshot{Total: 3}), "ETA")
}

func TestProgressModel_CancelKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'c'}},
		{Type: tea.KeyCtrlC},
	} {
		t.Run(key.String(), func(t *testing.T) {
			calls := 0
			m := NewProgressModel("Kicking members", 10, func() { calls++ })
			assert.Contains(t, m.View(), cancelButtonText)

			updated, cmd := m.Update(key)
			assert.Nil(t, cmd)
			m = updated.(ProgressModel)
			assert.True(t, m.Cancelling())
			assert.Contains(t, m.View(), cancellingText)

			updated, _ = m.Update(key)
			m = updated.(ProgressModel)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestProgressModel_IgnoresOtherKeys(t *testing.T) {
	called := false
	m := NewProgressModel("t", 1, func() { called = true })
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.False(t, updated.(ProgressModel).Cancelling())
	assert.False(t, called)
}

func TestProgressModel_ProgressAndFinal(t *testing.T) {
	m := NewProgressModel("Kicking members", 4, nil)

	updated, _ := m.Update(ProgressMsg{Snapshot: batch.ProgressSnapshot{
		Total: 4, Processed: 2, Succeeded: 1, Failed: []batch.Entity{{ID: "42", Name: "bob"}}, PercentComplete: 50,
	}})
	m = updated.(ProgressModel)
	view := m.View()
	assert.Contains(t, view, "2/~4 members processed")
	assert.Contains(t, view, "bob")
	assert.Contains(t, view, "<@42>")

	updated, cmd := m.Update(FinalMsg{Summary: batch.Summary{Total: 4, Processed: 3, Succeeded: 2, Skipped: 1,
		Failed: []batch.Entity{{ID: "42", Name: "bob"}}}})
	m = updated.(ProgressModel)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, m.Done())
	assert.Contains(t, m.View(), "4/~4 members processed")
	assert.NotContains(t, m.View(), cancelButtonText)

	// Cancelling after the final summary is a no-op.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.False(t, updated.(ProgressModel).Cancelling())
}

func TestProgressModel_TruncatesFailedList(t *testing.T) {
	failed := make([]batch.Entity, 8)
	for i := range failed {
		failed[i] = batch.Entity{ID: fmt.Sprint(i), Name: fmt.Sprintf("m%d", i)}
	}
	m := NewProgressModel("t", 8, nil)
	updated, _ := m.Update(ProgressMsg{Snapshot: batch.ProgressSnapshot{Total: 8, Processed: 8, Failed: failed}})
	view := updated.(ProgressModel).View()
	assert.Contains(t, view, "m4")
	assert.NotContains(t, view, "m5")
	assert.Contains(t, view, "... and 3 more")
}

func TestProgressModel_WindowSize(t *testing.T) {
	m := NewProgressModel("t", 1, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	m = updated.(ProgressModel)
	assert.Equal(t, 26, m.bar.Width)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 200, Height: 10})
	assert.Equal(t, maxBarWidth, updated.(ProgressModel).bar.Width)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 8, Height: 10})
	assert.Equal(t, minBarWidth, updated.(ProgressModel).bar.Width)
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (f *fakeSender) Send(msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func TestProgramSink(t *testing.T) {
	sender := &fakeSender{}
	sink := NewProgramSink(sender)

	sink.Render(batch.ProgressSnapshot{Total: 2})
	sink.RenderFinal(batch.Summary{Total: 2, Cancelled: true})

	require.Len(t, sender.msgs, 2)
	assert.Equal(t, ProgressMsg{Snapshot: batch.ProgressSnapshot{Total: 2}}, sender.msgs[0])
	assert.Equal(t, FinalMsg{Summary: batch.Summary{Total: 2, Cancelled: true}}, sender.msgs[1])
}

func TestPlainSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPlainSink(&buf)

	sink.Render(batch.ProgressSnapshot{Total: 10, Processed: 3, Succeeded: 3, PercentComplete: 30})
	sink.RenderFinal(batch.Summary{Total: 10, Processed: 4, Skipped: 1, Cancelled: true, Elapsed: 61 * time.Second})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "3/~10 members processed")
	assert.Equal(t, "Batch cancelled after 1m01s: 4 processed, 1 skipped, 5 untouched", lines[1])
}

func sampleReport() *cleanup.Report {
	return &cleanup.Report{
		RunID: "01TESTRUN",
		Role:  discord.Role{ID: "9", Name: "Member"},
		Summary: batch.Summary{
			Total:     10,
			Processed: 6,
			Succeeded: 5,
			Skipped:   4,
			Failed:    []batch.Entity{{ID: "77", Name: "stubborn"}},
			Elapsed:   30 * time.Second,
		},
		Eligible:  6,
		Remaining: 1,
	}
}

func TestRenderReport(t *testing.T) {
	out := RenderReport(sampleReport(), 0)

	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "6 members")
	assert.Contains(t, out, "5 members")
	assert.Contains(t, out, "Failed to process the following members:")
	assert.Contains(t, out, "- <@77>")
	assert.Contains(t, out, "There exist 1 user(s) that does not have the Member role")
	assert.Contains(t, out, "01TESTRUN")
	assert.NotContains(t, out, "Untouched")
}

func TestRenderReport_Cancelled(t *testing.T) {
	r := sampleReport()
	r.Summary.Cancelled = true
	r.Summary.Processed = 2
	r.Summary.Succeeded = 1
	r.Remaining = cleanup.RemainingUnknown
	r.DryRun = true

	out := RenderReport(r, 80)
	assert.Contains(t, out, "Cancelled by initiator")
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "Untouched")
	assert.Contains(t, out, "Could not recount")
	assert.NotContains(t, out, "There exist")
}

func TestRenderFailure(t *testing.T) {
	pre := fmt.Errorf("%w: %w: %q", batch.ErrPrecondition, cleanup.ErrRoleNotFound, "Member")
	out := RenderFailure(pre)
	assert.Contains(t, out, "Cleanup could not start")
	assert.Contains(t, out, "marker role not found")
	assert.Contains(t, out, "No members were touched.")

	out = RenderFailure(errors.New("boom"))
	assert.Contains(t, out, "Cleanup failed")
	assert.NotContains(t, out, "No members were touched.")
}

func TestRenderPlan(t *testing.T) {
	plan := &cleanup.Plan{
		Role:     discord.Role{Name: "Member"},
		Entities: make([]batch.Entity, 1234),
		Eligible: 1000,
	}
	out := RenderPlan(plan, true)
	assert.Contains(t, out, "1,234 members scanned, 1,000 lack the Member role")
	assert.Contains(t, out, "Dry run")
	assert.NotContains(t, RenderPlan(plan, false), "Dry run")
}
