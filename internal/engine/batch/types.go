package batch

import (
	"context"
	"time"
)

// Entity is an immutable snapshot of one member of the batch.
type Entity struct {
	// ID is the opaque identifier used by the remote service.
	ID string

	// Name is a human-readable label used in reports and logs.
	Name string

	// HasMarker is true when the entity held the protected marker when the
	// snapshot was taken. Such entities are never acted upon.
	HasMarker bool
}

// OutcomeStatus classifies the result of acting on a single entity.
type OutcomeStatus int

const (
	// OutcomeSucceeded means the remote action completed.
	OutcomeSucceeded OutcomeStatus = iota
	// OutcomeFailed means the remote action was rejected or errored.
	OutcomeFailed
	// OutcomeSkipped means the entity was found to hold the marker and was left alone.
	OutcomeSkipped
)

// String returns the lowercase name of the status, used as a metrics label.
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of EntityActor.Act.
type Outcome struct {
	Status OutcomeStatus
	Reason string
	Err    error
}

// Succeeded returns a successful outcome.
func Succeeded() Outcome { return Outcome{Status: OutcomeSucceeded} }

// Failed returns a failed outcome carrying the underlying error.
func Failed(err error) Outcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{Status: OutcomeFailed, Reason: reason, Err: err}
}

// Skipped returns an outcome for an entity that now holds the marker.
func Skipped(reason string) Outcome { return Outcome{Status: OutcomeSkipped, Reason: reason} }

// ChunkResult is the tally of one chunk. It is merged into State as soon as
// the chunk finishes or is cut short.
type ChunkResult struct {
	// Index is the 0-based chunk index.
	Index int

	// Size is the number of entities in the chunk.
	Size int

	// Attempted is the number of entities visited before the chunk ended,
	// skipped ones included. It is smaller than Size when the chunk was cut
	// short by cancellation.
	Attempted int

	// Succeeded is the number of successful remote actions.
	Succeeded int

	// Skipped is the number of marker-holding entities left alone.
	Skipped int

	// Failed lists the entities whose remote action failed, in order.
	Failed []Entity

	// Cancelled is true when the gate stopped the chunk early.
	Cancelled bool
}

// Processed returns the number of entities that reached a succeeded or failed outcome.
func (r ChunkResult) Processed() int {
	return r.Succeeded + len(r.Failed)
}

// ProgressSnapshot is an immutable copy of the batch state for rendering.
type ProgressSnapshot struct {
	Total           int
	Processed       int
	Succeeded       int
	Skipped         int
	Failed          []Entity
	Cancelled       bool
	ChunksDone      int
	ChunkSize       int
	StartTime       time.Time
	ElapsedTime     time.Duration
	PercentComplete float64
	ItemsPerSecond  float64
}

// Summary is the terminal record of a batch, produced exactly once.
type Summary struct {
	Total     int
	Processed int
	Succeeded int
	Skipped   int
	Failed    []Entity
	Cancelled bool
	Elapsed   time.Duration
}

// Untouched returns the number of snapshot entities that were neither
// processed nor skipped.
func (s Summary) Untouched() int {
	return s.Total - s.Processed - s.Skipped
}

// EntitySource provides the point-in-time entity snapshot.
type EntitySource interface {
	ListEntities(ctx context.Context) ([]Entity, error)
}

// MarkerChecker performs a live check for the protected marker.
type MarkerChecker interface {
	HasMarker(ctx context.Context, e Entity) (bool, error)
}

// Remover applies the remote mutating action.
type Remover interface {
	RemoveEntity(ctx context.Context, e Entity, reason string) error
}

// Notifier sends a best-effort message to the entity before it is removed.
type Notifier interface {
	Notify(ctx context.Context, e Entity, message string) error
}

// ProgressSink receives progress renders. Delivery failures are the sink's
// concern and are never reported back to the batch.
type ProgressSink interface {
	Render(snapshot ProgressSnapshot)
	RenderFinal(summary Summary)
}

// Actor applies the per-entity action. EntityActor is the production implementation.
type Actor interface {
	Act(ctx context.Context, e Entity) Outcome
}

// Recorder observes batch activity, typically for metrics.
type Recorder interface {
	ObserveChunk(result ChunkResult)
	ObserveSummary(summary Summary)
}
