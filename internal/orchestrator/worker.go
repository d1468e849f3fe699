package orchestrator

import "context"

// worker serializes training runs for one model. Triggers arriving while a
// run is in flight coalesce into a single pending slot, so a burst of events
// produces at most one follow-up run instead of a queue of stale ones.
type worker struct {
	trigger chan struct{}
	run     func(context.Context)
}

func newWorker(run func(context.Context)) *worker {
	return &worker{trigger: make(chan struct{}, 1), run: run}
}

// Trigger requests a run. Never blocks.
func (w *worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// loop runs until ctx is cancelled.
func (w *worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
			w.run(ctx)
		}
	}
}
