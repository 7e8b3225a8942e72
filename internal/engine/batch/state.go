package batch

import (
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// State holds the shared counters of a running batch. The processor merges
// chunk results into it and the progress reporter reads it; both go through
// the same mutex so the counter/failure-list partition is updated as a unit.
type State struct {
	total     int
	chunkSize int

	processed  int
	succeeded  int
	skipped    int
	failed     []Entity
	cancelled  bool
	chunksDone int

	clock     clockwork.Clock
	startTime time.Time

	// mu protects all fields above.
	mu sync.Mutex
}

// NewState creates the state for a snapshot of total entities.
func NewState(total, chunkSize int, clock clockwork.Clock) *State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &State{
		total:     total,
		chunkSize: chunkSize,
		clock:     clock,
		startTime: clock.Now(),
	}
}

// Merge folds a chunk result into the counters. A cancelled result sets the
// cancelled flag, which is never cleared afterwards.
func (s *State) Merge(result ChunkResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.succeeded += result.Succeeded
	s.failed = append(s.failed, result.Failed...)
	s.processed += result.Processed()
	s.skipped += result.Skipped
	s.chunksDone++
	if result.Cancelled {
		s.cancelled = true
	}
}

// Snapshot returns a copy of the current state for rendering.
func (s *State) Snapshot() ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.clock.Since(s.startTime)
	return ProgressSnapshot{
		Total:           s.total,
		Processed:       s.processed,
		Succeeded:       s.succeeded,
		Skipped:         s.skipped,
		Failed:          slices.Clone(s.failed),
		Cancelled:       s.cancelled,
		ChunksDone:      s.chunksDone,
		ChunkSize:       s.chunkSize,
		StartTime:       s.startTime,
		ElapsedTime:     elapsed,
		PercentComplete: s.percentCompleteUnsafe(),
		ItemsPerSecond:  s.itemsPerSecondUnsafe(elapsed),
	}
}

// Summary builds the terminal summary from the current state.
func (s *State) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Summary{
		Total:     s.total,
		Processed: s.processed,
		Succeeded: s.succeeded,
		Skipped:   s.skipped,
		Failed:    slices.Clone(s.failed),
		Cancelled: s.cancelled,
		Elapsed:   s.clock.Since(s.startTime),
	}
}

// percentCompleteUnsafe calculates percent complete without locking.
// Should only be called when already holding the lock.
func (s *State) percentCompleteUnsafe() float64 {
	if s.total == 0 {
		return 0
	}
	return (float64(s.processed+s.skipped) / float64(s.total)) * percentMultiplier
}

// itemsPerSecondUnsafe calculates the processing rate without locking.
// Should only be called when already holding the lock.
func (s *State) itemsPerSecondUnsafe(elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds == 0 {
		return 0
	}
	return float64(s.processed) / seconds
}

// EstimatedTimeRemaining estimates the remaining time from the observed rate.
// Returns 0 if nothing has been processed yet.
func (p ProgressSnapshot) EstimatedTimeRemaining() time.Duration {
	done := p.Processed + p.Skipped
	if done == 0 {
		return 0
	}
	avgPerItem := p.ElapsedTime / time.Duration(done)
	return avgPerItem * time.Duration(p.Total-done)
}
