package batch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, chunkSize int, remover *fakeRemover, sink ProgressSink, opts ...CoordinatorOption) *Coordinator {
	t.Helper()
	p := newTestProcessor(t, chunkSize, remover)
	opts = append([]CoordinatorOption{WithProgressInterval(time.Millisecond)}, opts...)
	return NewCoordinator(p, sink, opts...)
}

func runBatch(t *testing.T, c *Coordinator, gate *CancellationGate, entities []Entity) Summary {
	t.Helper()
	summary, err := c.Run(context.Background(), gate, entities)
	require.NoError(t, err)
	return summary
}

func TestCoordinator_Scenarios(t *testing.T) {
	t.Run("all succeed across chunks", func(t *testing.T) {
		remover := &fakeRemover{}
		sink := &recordingSink{}
		c := newTestCoordinator(t, 100, remover, sink)
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		summary := runBatch(t, c, gate, makeEntities(250))

		assert.Equal(t, 250, summary.Total)
		assert.Equal(t, 250, summary.Processed)
		assert.Equal(t, 250, summary.Succeeded)
		assert.Empty(t, summary.Failed)
		assert.False(t, summary.Cancelled)
		assert.Len(t, remover.Calls(), 250)
	})

	t.Run("marker holders are not attempted", func(t *testing.T) {
		remover := &fakeRemover{}
		c := newTestCoordinator(t, 100, remover, &recordingSink{})
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		entities := makeEntities(10)
		for _, i := range []int{1, 4, 8} {
			entities[i].HasMarker = true
		}

		summary := runBatch(t, c, gate, entities)

		assert.Equal(t, 7, summary.Processed)
		assert.Equal(t, 7, summary.Succeeded)
		assert.Equal(t, 3, summary.Skipped)
		assert.Len(t, remover.Calls(), 7)
		for _, id := range remover.Calls() {
			assert.NotContains(t, []string{"e2", "e5", "e9"}, id)
		}
	})

	t.Run("cancellation after the fifth entity", func(t *testing.T) {
		gate := NewCancellationGate(context.Background())
		defer gate.Release()
		remover := &fakeRemover{onCall: func(n int) {
			if n == 5 {
				gate.Signal()
			}
		}}
		c := newTestCoordinator(t, 100, remover, &recordingSink{})

		summary := runBatch(t, c, gate, makeEntities(250))

		assert.Equal(t, 250, summary.Total)
		assert.Equal(t, 5, summary.Processed)
		assert.Equal(t, 245, summary.Untouched())
		assert.True(t, summary.Cancelled)
		assert.Len(t, remover.Calls(), 5)
	})

	t.Run("failures for the third and seventh entity", func(t *testing.T) {
		remover := &fakeRemover{failIDs: map[string]bool{"e3": true, "e7": true}}
		c := newTestCoordinator(t, 100, remover, &recordingSink{})
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		summary := runBatch(t, c, gate, makeEntities(10))

		assert.Equal(t, 10, summary.Processed)
		assert.Equal(t, 8, summary.Succeeded)
		require.Len(t, summary.Failed, 2)
		assert.Equal(t, "e3", summary.Failed[0].ID)
		assert.Equal(t, "e7", summary.Failed[1].ID)
		assert.False(t, summary.Cancelled)
	})

	t.Run("empty entity set", func(t *testing.T) {
		remover := &fakeRemover{}
		sink := &recordingSink{}
		c := newTestCoordinator(t, 100, remover, sink)
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		summary := runBatch(t, c, gate, nil)

		assert.Equal(t, Summary{Elapsed: summary.Elapsed}, summary)
		assert.Empty(t, remover.Calls())
		require.Len(t, sink.Finals(), 1)
		assert.NotEmpty(t, sink.Renders())
	})
}

func TestCoordinator_FinalRender(t *testing.T) {
	remover := &fakeRemover{failIDs: map[string]bool{"e2": true}}
	sink := &recordingSink{}
	recorder := &recordingRecorder{}
	c := newTestCoordinator(t, 3, remover, sink, WithRecorder(recorder), WithLogger(zerolog.Nop()))
	gate := NewCancellationGate(context.Background())
	defer gate.Release()

	summary := runBatch(t, c, gate, makeEntities(8))

	finals := sink.Finals()
	require.Len(t, finals, 1)
	assert.Equal(t, summary.Processed, finals[0].Processed)
	assert.False(t, sink.renderAfterFinal)

	renders := sink.Renders()
	require.NotEmpty(t, renders)
	last := renders[len(renders)-1]
	assert.Equal(t, summary.Processed, last.Processed)
	assert.Equal(t, summary.Succeeded, last.Succeeded)
	assert.Len(t, last.Failed, len(summary.Failed))

	assert.Len(t, recorder.chunks, 3)
	require.Len(t, recorder.summaries, 1)
	assert.Equal(t, summary.Processed, recorder.summaries[0].Processed)
}

func TestCoordinator_Preconditions(t *testing.T) {
	p := newTestProcessor(t, 10, &fakeRemover{})
	gate := NewCancellationGate(context.Background())
	defer gate.Release()

	tests := []struct {
		name  string
		coord *Coordinator
		gate  *CancellationGate
	}{
		{name: "nil sink", coord: NewCoordinator(p, nil), gate: gate},
		{name: "nil processor", coord: NewCoordinator(nil, &recordingSink{}), gate: gate},
		{name: "nil gate", coord: NewCoordinator(p, &recordingSink{}), gate: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.coord.Run(context.Background(), tt.gate, makeEntities(3))
			assert.ErrorIs(t, err, ErrPrecondition)
		})
	}
}

// TestCoordinator_Invariants checks the counter invariants over random batches,
// with and without cancellation.
func TestCoordinator_Invariants(t *testing.T) {
	for seed := range uint64(25) {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*31+7))
			n := rng.IntN(300)
			entities := makeEntities(n)
			failIDs := map[string]bool{}
			for i := range entities {
				switch rng.IntN(6) {
				case 0:
					entities[i].HasMarker = true
				case 1:
					failIDs[entities[i].ID] = true
				}
			}

			gate := NewCancellationGate(context.Background())
			defer gate.Release()
			cancelAt := 0
			if n > 0 && rng.IntN(2) == 0 {
				cancelAt = rng.IntN(n) + 1
			}
			remover := &fakeRemover{failIDs: failIDs, onCall: func(call int) {
				if call == cancelAt {
					gate.Signal()
				}
			}}
			sink := &recordingSink{}
			c := newTestCoordinator(t, 1+rng.IntN(50), remover, sink)

			summary := runBatch(t, c, gate, entities)

			assert.Equal(t, summary.Processed, summary.Succeeded+len(summary.Failed))
			assert.LessOrEqual(t, summary.Processed+summary.Skipped, summary.Total)
			assert.Equal(t, !summary.Cancelled, summary.Processed+summary.Skipped == summary.Total)
			assert.Len(t, remover.Calls(), summary.Processed)

			for _, f := range summary.Failed {
				assert.True(t, failIDs[f.ID])
			}
			for _, id := range remover.Calls() {
				for _, e := range entities {
					if e.ID == id {
						assert.False(t, e.HasMarker, "marker holder %s was removed", id)
					}
				}
			}

			prev := ProgressSnapshot{}
			for _, r := range sink.Renders() {
				assert.GreaterOrEqual(t, r.Processed, prev.Processed)
				assert.LessOrEqual(t, r.Processed, summary.Processed)
				assert.LessOrEqual(t, r.Succeeded, summary.Succeeded)
				assert.LessOrEqual(t, r.Skipped, summary.Skipped)
				assert.LessOrEqual(t, len(r.Failed), len(summary.Failed))
				prev = r
			}
		})
	}
}
