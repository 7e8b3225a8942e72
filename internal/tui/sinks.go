package tui

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/guildsweep/internal/engine/batch"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink forwards batch progress to a Bubble Tea program.
type ProgramSink struct {
	program Sender
}

var _ batch.ProgressSink = (*ProgramSink)(nil)

// NewProgramSink creates a sink that sends ProgressMsg and FinalMsg to program.
func NewProgramSink(program Sender) *ProgramSink {
	return &ProgramSink{program: program}
}

// Render sends the snapshot to the program.
func (s *ProgramSink) Render(snapshot batch.ProgressSnapshot) {
	s.program.Send(ProgressMsg{Snapshot: snapshot})
}

// RenderFinal sends the summary, which ends the program.
func (s *ProgramSink) RenderFinal(summary batch.Summary) {
	s.program.Send(FinalMsg{Summary: summary})
}

// PlainSink writes one progress line per render, for logs and non-TTY output.
// Write errors are dropped.
type PlainSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ batch.ProgressSink = (*PlainSink)(nil)

// NewPlainSink creates a sink writing to w.
func NewPlainSink(w io.Writer) *PlainSink {
	return &PlainSink{w: w}
}

// Render writes the snapshot counters.
func (s *PlainSink) Render(snapshot batch.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, ProgressLine(snapshot))
}

// RenderFinal writes the terminal state of the batch.
func (s *PlainSink) RenderFinal(summary batch.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := "finished"
	if summary.Cancelled {
		state = "cancelled"
	}
	_, _ = fmt.Fprintf(s.w, "Batch %s after %s: %s processed, %s skipped, %s untouched\n",
		state,
		FormatDuration(summary.Elapsed),
		FormatNumber(summary.Processed),
		FormatNumber(summary.Skipped),
		FormatNumber(summary.Untouched()),
	)
}
