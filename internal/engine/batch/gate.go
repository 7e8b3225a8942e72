package batch

import (
	"context"
	"sync"
)

// CancellationGate is a one-way cooperative cancellation flag.
// It is safe to signal from any goroutine, for example a UI key handler or a
// signal handler, and is polled by the processor before each entity.
type CancellationGate struct {
	mu        sync.Mutex
	signalled bool

	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
}

// NewCancellationGate creates a gate that is also signalled when parent is
// cancelled. The gate's own context does not inherit parent's cancellation
// directly, so Done only closes once IsSignalled reports true.
func NewCancellationGate(parent context.Context) *CancellationGate {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	g := &CancellationGate{ctx: ctx, cancel: cancel}
	g.stop = context.AfterFunc(parent, g.Signal)
	return g
}

// Signal sets the gate. Calling it more than once has no further effect.
func (g *CancellationGate) Signal() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.signalled {
		return
	}
	g.signalled = true
	g.cancel()
}

// IsSignalled reports whether Signal has been called.
func (g *CancellationGate) IsSignalled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signalled
}

// Done returns a channel closed once the gate is signalled.
func (g *CancellationGate) Done() <-chan struct{} {
	return g.ctx.Done()
}

// Context returns a context cancelled once the gate is signalled. It is meant
// for interruptible waits, not for in-flight remote calls.
func (g *CancellationGate) Context() context.Context {
	return g.ctx
}

// Release detaches the gate from its parent context. It does not signal the gate.
func (g *CancellationGate) Release() {
	if g.stop != nil {
		g.stop()
	}
}
