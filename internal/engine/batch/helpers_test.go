package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// makeEntities returns n entities named e1..en without the marker.
func makeEntities(n int) []Entity {
	entities := make([]Entity, n)
	for i := range entities {
		entities[i] = Entity{ID: fmt.Sprintf("e%d", i+1), Name: fmt.Sprintf("entity-%d", i+1)}
	}
	return entities
}

var errRemote = errors.New("remote rejected")

// fakeRemover records removal calls and fails for configured IDs.
type fakeRemover struct {
	mu      sync.Mutex
	calls   []string
	reasons []string
	failIDs map[string]bool

	// onCall, if set, runs after the call is recorded with the 1-based call number.
	onCall func(n int)
}

func (r *fakeRemover) RemoveEntity(_ context.Context, e Entity, reason string) error {
	r.mu.Lock()
	r.calls = append(r.calls, e.ID)
	r.reasons = append(r.reasons, reason)
	n := len(r.calls)
	fail := r.failIDs[e.ID]
	hook := r.onCall
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if fail {
		return fmt.Errorf("kick %s: %w", e.ID, errRemote)
	}
	return nil
}

func (r *fakeRemover) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakeNotifier records notifications and optionally fails them all.
type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
	messages []string
	fail     bool
}

func (n *fakeNotifier) Notify(_ context.Context, e Entity, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, e.ID)
	n.messages = append(n.messages, message)
	if n.fail {
		return errors.New("cannot send messages to this user")
	}
	return nil
}

// fakeMarker reports the marker for the configured IDs.
type fakeMarker struct {
	marked map[string]bool
	err    error
}

func (m fakeMarker) HasMarker(_ context.Context, e Entity) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.marked[e.ID], nil
}

// recordingSink keeps every render for later inspection.
type recordingSink struct {
	mu      sync.Mutex
	renders []ProgressSnapshot
	finals  []Summary

	// renderAfterFinal is set if Render was called after RenderFinal.
	renderAfterFinal bool
}

func (s *recordingSink) Render(snapshot ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.finals) > 0 {
		s.renderAfterFinal = true
	}
	s.renders = append(s.renders, snapshot)
}

func (s *recordingSink) RenderFinal(summary Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, summary)
}

func (s *recordingSink) Renders() []ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressSnapshot(nil), s.renders...)
}

func (s *recordingSink) Finals() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Summary(nil), s.finals...)
}

// recordingRecorder collects recorder callbacks.
type recordingRecorder struct {
	mu        sync.Mutex
	chunks    []ChunkResult
	summaries []Summary
}

func (r *recordingRecorder) ObserveChunk(result ChunkResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, result)
}

func (r *recordingRecorder) ObserveSummary(summary Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
}
