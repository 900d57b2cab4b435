package engine

import "time"

// batcher coalesces many rapid mutations into a single flush on a
// fixed cadence. It is a two-state machine: idle (no timer armed) and
// pending (a one-shot flush timer is armed). Mutations while pending
// accumulate without re-arming the timer, so the publish frequency is
// bounded regardless of the input burst rate.
//
// mark, settle and stop must be called with the engine mutex held; the
// timer callback acquires it itself.
type batcher struct {
	interval time.Duration
	flush    func()
	timer    *time.Timer
	pending  bool
	stopped  bool
}

func newBatcher(interval time.Duration, flush func()) *batcher {
	return &batcher{interval: interval, flush: flush}
}

// mark transitions idle -> pending and arms the flush timer. Every
// armed timer eventually flushes exactly once; pending batches are
// never dropped.
func (b *batcher) mark() {
	if b.stopped || b.pending {
		return
	}
	b.pending = true
	b.timer = time.AfterFunc(b.interval, b.flush)
}

// settle transitions pending -> idle after a flush.
func (b *batcher) settle() {
	b.pending = false
}

// stop cancels any armed timer. A timer that already fired is handled
// by the engine's liveness check.
func (b *batcher) stop() {
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}
