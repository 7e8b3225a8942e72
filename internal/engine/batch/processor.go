package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Default chunk processing configuration.
const (
	// DefaultChunkSize is the default number of entities per chunk.
	DefaultChunkSize = 100

	// MinChunkSize is the minimum allowed chunk size.
	MinChunkSize = 1

	// MaxChunkSize is the maximum allowed chunk size.
	MaxChunkSize = 1000
)

// Common chunk processing errors.
var (
	ErrInvalidChunkSize = errors.New("chunk size must be between 1 and 1000")
	ErrNilCallback      = errors.New("chunk callback cannot be nil")
	ErrNilActor         = errors.New("processor requires an actor")
	ErrNilGate          = errors.New("cancellation gate cannot be nil")
)

// ChunkCallback receives the tally of each chunk, completed or cut short.
type ChunkCallback func(result ChunkResult)

// Processor walks an entity snapshot in fixed-size chunks and applies the
// actor to each entity sequentially, one remote action at a time.
type Processor struct {
	// chunkSize is the number of entities per chunk.
	chunkSize int

	actor   Actor
	limiter *RateLimiter
	logger  zerolog.Logger
}

// NewProcessor creates a chunk processor. A nil limiter means no delay between actions.
func NewProcessor(chunkSize int, actor Actor, limiter *RateLimiter, logger zerolog.Logger) (*Processor, error) {
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if actor == nil {
		return nil, ErrNilActor
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, nil)
	}

	return &Processor{
		chunkSize: chunkSize,
		actor:     actor,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Process applies the actor to entities chunk by chunk and reports each
// chunk through callback. The gate is checked before every entity; once it
// is signalled the current chunk is reported with Cancelled set and
// processing stops.
//
// In-flight actions run on ctx and are never interrupted by the gate. The
// gate only cuts short the rate limiter wait between actions.
func (p *Processor) Process(ctx context.Context, gate *CancellationGate, entities []Entity, callback ChunkCallback) error {
	if gate == nil {
		return ErrNilGate
	}
	if callback == nil {
		return ErrNilCallback
	}

	for chunkIndex, bounds := range p.CalculateChunks(len(entities)) {
		result := p.processChunk(ctx, gate, chunkIndex, entities[bounds[0]:bounds[1]])

		p.logger.Debug().
			Int("chunk", chunkIndex).
			Int("attempted", result.Attempted).
			Int("succeeded", result.Succeeded).
			Int("failed", len(result.Failed)).
			Int("skipped", result.Skipped).
			Bool("cancelled", result.Cancelled).
			Msg("chunk finished")

		callback(result)

		if result.Cancelled {
			return nil
		}
	}

	return nil
}

// processChunk runs one chunk and stops early when the gate is signalled.
func (p *Processor) processChunk(ctx context.Context, gate *CancellationGate, index int, chunk []Entity) ChunkResult {
	result := ChunkResult{Index: index, Size: len(chunk)}

	for i, entity := range chunk {
		if gate.IsSignalled() {
			result.Attempted = i
			result.Cancelled = true
			return result
		}

		if entity.HasMarker {
			result.Skipped++
			continue
		}

		if !p.limiter.Wait(gate.Context()) {
			// Interrupted by the gate: this entity was not attempted.
			result.Attempted = i
			result.Cancelled = true
			return result
		}

		outcome := p.actor.Act(ctx, entity)
		p.limiter.Mark()
		switch outcome.Status {
		case OutcomeSucceeded:
			result.Succeeded++
		case OutcomeFailed:
			result.Failed = append(result.Failed, entity)
		case OutcomeSkipped:
			result.Skipped++
		}
	}

	result.Attempted = len(chunk)
	return result
}

// CalculateChunks returns the chunk boundaries for the given entity count.
// Returns a slice of [start, end) index pairs.
func (p *Processor) CalculateChunks(total int) [][2]int {
	chunks := make([][2]int, p.calculateTotalChunks(total))

	for i := range chunks {
		start := i * p.chunkSize
		end := min(start+p.chunkSize, total)
		chunks[i] = [2]int{start, end}
	}

	return chunks
}

// calculateTotalChunks calculates the number of chunks needed for the given entity count.
func (p *Processor) calculateTotalChunks(total int) int {
	chunks := total / p.chunkSize
	if total%p.chunkSize > 0 {
		chunks++
	}
	return chunks
}
