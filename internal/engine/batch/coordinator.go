package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrPrecondition marks failures detected before any entity is touched.
var ErrPrecondition = errors.New("batch precondition failed")

// DefaultProgressInterval is the default tick of the progress reporter.
const DefaultProgressInterval = 5 * time.Second

// Coordinator runs a chunk processor alongside a progress reporter and
// produces the final Summary. A Coordinator may run several batches, one at a
// time; each run owns a fresh State.
type Coordinator struct {
	processor        *Processor
	sink             ProgressSink
	progressInterval time.Duration
	recorder         Recorder
	clock            clockwork.Clock
	logger           zerolog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithProgressInterval sets the reporter tick interval.
func WithProgressInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.progressInterval = d }
}

// WithRecorder sets an observer for chunk results and the final summary.
func WithRecorder(r Recorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = r }
}

// WithClock sets the clock used for elapsed-time tracking and reporter ticks.
func WithClock(clock clockwork.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// WithLogger sets the coordinator logger.
func WithLogger(l zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a coordinator rendering progress to sink.
func NewCoordinator(processor *Processor, sink ProgressSink, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		processor:        processor,
		sink:             sink,
		progressInterval: DefaultProgressInterval,
		clock:            clockwork.NewRealClock(),
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes entities until they are exhausted or the gate is signalled.
//
// Per-entity failures are reported in the Summary, never as an error. An
// error is returned only for precondition violations, before any entity is
// touched and before anything is rendered.
func (c *Coordinator) Run(ctx context.Context, gate *CancellationGate, entities []Entity) (Summary, error) {
	if err := c.validate(gate); err != nil {
		return Summary{}, err
	}

	snapshot := slices.Clone(entities)
	state := NewState(len(snapshot), c.processor.ChunkSize(), c.clock)
	reporter := NewProgressReporter(state, c.sink, c.progressInterval, c.clock)

	c.logger.Info().
		Int("entities", len(snapshot)).
		Int("chunk_size", c.processor.ChunkSize()).
		Dur("rate_limit", c.processor.limiter.Interval()).
		Msg("batch started")

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		reporter.Run(done)
		return nil
	})

	processErr := c.processor.Process(ctx, gate, snapshot, func(result ChunkResult) {
		state.Merge(result)
		if c.recorder != nil {
			c.recorder.ObserveChunk(result)
		}
	})

	close(done)
	_ = g.Wait()

	summary := state.Summary()
	c.sink.RenderFinal(summary)
	if c.recorder != nil {
		c.recorder.ObserveSummary(summary)
	}

	c.logger.Info().
		Int("total", summary.Total).
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", len(summary.Failed)).
		Int("skipped", summary.Skipped).
		Bool("cancelled", summary.Cancelled).
		Dur("elapsed", summary.Elapsed).
		Msg("batch finished")

	if processErr != nil {
		return summary, fmt.Errorf("processing batch: %w", processErr)
	}
	return summary, nil
}

func (c *Coordinator) validate(gate *CancellationGate) error {
	switch {
	case c.processor == nil:
		return fmt.Errorf("%w: chunk processor cannot be nil", ErrPrecondition)
	case c.sink == nil:
		return fmt.Errorf("%w: progress sink cannot be nil", ErrPrecondition)
	case gate == nil:
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrNilGate)
	}
	return nil
}
