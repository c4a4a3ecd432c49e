package sched

import (
	"context"
	"sync/atomic"
	"time"

	"ticksim/internal/pulse"
)

// unit is one piece of work accepted by the pool.
// discard is called instead of run when the pool is shutting down.
type unit interface {
	run(ctx context.Context)
	discard()
}

// delivery hands one pulse to one registered target.
// Every path through a delivery settles its barrier exactly once.
type delivery struct {
	b       *Broadcaster
	entry   *entry
	pulse   *pulse.Pulse
	barrier *barrier
	settled atomic.Bool
}

func (d *delivery) run(context.Context) {
	defer d.settle()

	if d.entry.removed.Load() {
		d.b.stats.discarded.Add(1)
		return
	}

	p, ok := d.entry.admit(d.pulse, d.b.now())
	if !ok {
		d.b.stats.skipped.Add(1)
		d.b.emit(StatusEvent{
			Time:    time.Now(),
			Kind:    StatusSkip,
			PulseID: d.pulse.ID,
			Target:  d.entry.name,
		})
		return
	}

	if err := d.entry.deliver(p); err != nil {
		d.b.targetFailed(d.entry, p, err)
		return
	}
	d.b.stats.delivered.Add(1)
}

func (d *delivery) discard() {
	if d.settle() {
		d.b.stats.discarded.Add(1)
	}
}

// settle counts the barrier down once; later calls are no-ops.
func (d *delivery) settle() bool {
	if !d.settled.CompareAndSwap(false, true) {
		return false
	}
	d.barrier.countDown()
	return true
}
