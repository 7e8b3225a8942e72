package batch

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, chunkSize int, remover *fakeRemover) *Processor {
	t.Helper()
	actor, err := NewEntityActor(remover, "cleanup")
	require.NoError(t, err)
	p, err := NewProcessor(chunkSize, actor, nil, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestProcessor_Process(t *testing.T) {
	t.Run("Sequential", func(t *testing.T) {
		remover := &fakeRemover{}
		p := newTestProcessor(t, 10, remover)
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		var results []ChunkResult
		err := p.Process(context.Background(), gate, makeEntities(25), func(r ChunkResult) {
			results = append(results, r)
		})
		require.NoError(t, err)

		require.Len(t, results, 3)
		assert.Equal(t, []int{10, 10, 5}, []int{results[0].Size, results[1].Size, results[2].Size})
		total := 0
		for i, r := range results {
			assert.Equal(t, i, r.Index)
			assert.Equal(t, r.Size, r.Attempted)
			assert.False(t, r.Cancelled)
			total += r.Succeeded
		}
		assert.Equal(t, 25, total)
		assert.Len(t, remover.Calls(), 25)
	})

	t.Run("preserves entity order", func(t *testing.T) {
		remover := &fakeRemover{}
		p := newTestProcessor(t, 4, remover)
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		entities := makeEntities(9)
		require.NoError(t, p.Process(context.Background(), gate, entities, func(ChunkResult) {}))

		want := make([]string, len(entities))
		for i, e := range entities {
			want[i] = e.ID
		}
		assert.Equal(t, want, remover.Calls())
	})

	t.Run("marker holders are skipped", func(t *testing.T) {
		remover := &fakeRemover{}
		p := newTestProcessor(t, 100, remover)
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		entities := makeEntities(10)
		entities[0].HasMarker = true
		entities[4].HasMarker = true
		entities[9].HasMarker = true

		var results []ChunkResult
		require.NoError(t, p.Process(context.Background(), gate, entities, func(r ChunkResult) {
			results = append(results, r)
		}))

		require.Len(t, results, 1)
		assert.Equal(t, 7, results[0].Processed())
		assert.Equal(t, 3, results[0].Skipped)
		assert.NotContains(t, remover.Calls(), "e1")
		assert.NotContains(t, remover.Calls(), "e5")
		assert.NotContains(t, remover.Calls(), "e10")
	})

	t.Run("failures are collected in order", func(t *testing.T) {
		remover := &fakeRemover{failIDs: map[string]bool{"e3": true, "e7": true}}
		p := newTestProcessor(t, 5, remover)
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		var failed []Entity
		succeeded := 0
		require.NoError(t, p.Process(context.Background(), gate, makeEntities(10), func(r ChunkResult) {
			failed = append(failed, r.Failed...)
			succeeded += r.Succeeded
		}))

		require.Len(t, failed, 2)
		assert.Equal(t, "e3", failed[0].ID)
		assert.Equal(t, "e7", failed[1].ID)
		assert.Equal(t, 8, succeeded)
	})

	t.Run("cancellation mid-chunk counts only attempted entities", func(t *testing.T) {
		gate := NewCancellationGate(context.Background())
		defer gate.Release()
		remover := &fakeRemover{onCall: func(n int) {
			if n == 5 {
				gate.Signal()
			}
		}}
		p := newTestProcessor(t, 100, remover)

		var results []ChunkResult
		require.NoError(t, p.Process(context.Background(), gate, makeEntities(250), func(r ChunkResult) {
			results = append(results, r)
		}))

		require.Len(t, results, 1)
		assert.True(t, results[0].Cancelled)
		assert.Equal(t, 100, results[0].Size)
		assert.Equal(t, 5, results[0].Attempted)
		assert.Equal(t, 5, results[0].Processed())
		assert.Len(t, remover.Calls(), 5)
	})

	t.Run("gate signalled before start", func(t *testing.T) {
		gate := NewCancellationGate(context.Background())
		defer gate.Release()
		gate.Signal()
		remover := &fakeRemover{}
		p := newTestProcessor(t, 10, remover)

		var results []ChunkResult
		require.NoError(t, p.Process(context.Background(), gate, makeEntities(30), func(r ChunkResult) {
			results = append(results, r)
		}))

		require.Len(t, results, 1)
		assert.True(t, results[0].Cancelled)
		assert.Equal(t, 0, results[0].Attempted)
		assert.Empty(t, remover.Calls())
	})

	t.Run("EmptyItems", func(t *testing.T) {
		remover := &fakeRemover{}
		p := newTestProcessor(t, 10, remover)
		gate := NewCancellationGate(context.Background())
		defer gate.Release()

		calls := 0
		require.NoError(t, p.Process(context.Background(), gate, nil, func(ChunkResult) { calls++ }))
		assert.Zero(t, calls)
		assert.Empty(t, remover.Calls())
	})

	t.Run("NilCallback", func(t *testing.T) {
		p := newTestProcessor(t, 10, &fakeRemover{})
		gate := NewCancellationGate(context.Background())
		defer gate.Release()
		err := p.Process(context.Background(), gate, makeEntities(3), nil)
		assert.ErrorIs(t, err, ErrNilCallback)
	})

	t.Run("NilGate", func(t *testing.T) {
		p := newTestProcessor(t, 10, &fakeRemover{})
		err := p.Process(context.Background(), nil, makeEntities(3), func(ChunkResult) {})
		assert.ErrorIs(t, err, ErrNilGate)
	})
}

func TestNewProcessor_Validation(t *testing.T) {
	actor, err := NewEntityActor(&fakeRemover{}, "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		chunkSize int
		actor     Actor
		wantErr   error
	}{
		{name: "zero chunk size", chunkSize: 0, actor: actor, wantErr: ErrInvalidChunkSize},
		{name: "oversized chunk", chunkSize: 2000, actor: actor, wantErr: ErrInvalidChunkSize},
		{name: "nil actor", chunkSize: 10, actor: nil, wantErr: ErrNilActor},
		{name: "minimum", chunkSize: MinChunkSize, actor: actor},
		{name: "maximum", chunkSize: MaxChunkSize, actor: actor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProcessor(tt.chunkSize, tt.actor, nil, zerolog.Nop())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.chunkSize, p.ChunkSize())
		})
	}
}

func TestProcessor_CalculateChunks(t *testing.T) {
	p := newTestProcessor(t, 10, &fakeRemover{})

	chunks := p.CalculateChunks(25)
	require.Len(t, chunks, 3)
	assert.Equal(t, [2]int{0, 10}, chunks[0])
	assert.Equal(t, [2]int{10, 20}, chunks[1])
	assert.Equal(t, [2]int{20, 25}, chunks[2])

	assert.Empty(t, p.CalculateChunks(0))
	assert.Len(t, p.CalculateChunks(10), 1)
	assert.Equal(t, 10, p.ChunkSize())
}

func TestProcessor_WaitsFullIntervalAfterEachAction(t *testing.T) {
	const (
		interval   = 200 * time.Millisecond
		actionTime = 150 * time.Millisecond
	)

	fc := clockwork.NewFakeClock()
	remover := &fakeRemover{failIDs: map[string]bool{"e1": true}}
	remover.onCall = func(int) { fc.Advance(actionTime) }

	actor, err := NewEntityActor(remover, "cleanup")
	require.NoError(t, err)
	p, err := NewProcessor(10, actor, NewRateLimiter(interval, fc), zerolog.Nop())
	require.NoError(t, err)

	gate := NewCancellationGate(context.Background())
	defer gate.Release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Process(context.Background(), gate, makeEntities(2), func(ChunkResult) {})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	require.Equal(t, []string{"e1"}, remover.Calls())

	// A pause measured from the start of the failed first action would already be over.
	fc.Advance(interval - actionTime)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"e1"}, remover.Calls())

	fc.Advance(actionTime)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second action never ran")
	}
	assert.Equal(t, []string{"e1", "e2"}, remover.Calls())
}
