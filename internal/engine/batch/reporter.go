package batch

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// ProgressReporter periodically renders the batch state to a sink until it is
// told to stop, then renders once more from the final state.
type ProgressReporter struct {
	state    *State
	sink     ProgressSink
	interval time.Duration
	clock    clockwork.Clock
}

// NewProgressReporter creates a reporter ticking every interval. A
// non-positive interval renders only at start and stop.
func NewProgressReporter(state *State, sink ProgressSink, interval time.Duration, clock clockwork.Clock) *ProgressReporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ProgressReporter{
		state:    state,
		sink:     sink,
		interval: interval,
		clock:    clock,
	}
}

// Run renders immediately and then on every tick until done is closed. The
// render after done is observed is always made, so the sink's last progress
// render reflects the terminal state even if a tick fired just before.
func (r *ProgressReporter) Run(done <-chan struct{}) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := r.clock.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	r.render()
	for {
		select {
		case <-done:
			r.render()
			return
		case <-tick:
			r.render()
		}
	}
}

func (r *ProgressReporter) render() {
	r.sink.Render(r.state.Snapshot())
}
