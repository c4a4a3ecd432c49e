package sched

import "sync/atomic"

// barrier is the per-tick countdown the driver waits on.
type barrier struct {
	remaining atomic.Int64
	done      chan struct{}
}

func newBarrier(n int) *barrier {
	b := &barrier{done: make(chan struct{})}
	b.remaining.Store(int64(n))
	if n <= 0 {
		close(b.done)
	}
	return b
}

// countDown must be called exactly once per dispatched unit.
func (b *barrier) countDown() {
	if b.remaining.Add(-1) == 0 {
		close(b.done)
	}
}

// outstanding reports how many units have not settled yet.
func (b *barrier) outstanding() int {
	n := b.remaining.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
