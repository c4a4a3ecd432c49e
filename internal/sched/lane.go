package sched

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// lane serializes the deliveries of one target on the shared pool.
//
// State machine: idle -> draining -> idle. Whoever flips draining with a CAS
// owns the lane and is the only one popping from it. After releasing, the
// owner re-checks the queue so a unit pushed in between is never stranded.
type lane struct {
	pool     *pool
	mu       sync.Mutex // guards queue
	queue    *linkedlistqueue.Queue
	draining atomic.Bool
}

func newLane(p *pool) *lane {
	return &lane{pool: p, queue: linkedlistqueue.New()}
}

// execute appends u and schedules the lane if it is idle.
func (l *lane) execute(u unit) {
	l.mu.Lock()
	l.queue.Enqueue(u)
	l.mu.Unlock()

	if !l.draining.CompareAndSwap(false, true) {
		return
	}
	if !l.pool.submit(l) {
		l.discard()
	}
}

// run is the drain loop, executed on a pool worker.
func (l *lane) run(ctx context.Context) {
	l.drain(func(u unit) {
		if ctx.Err() != nil {
			u.discard()
			return
		}
		u.run(ctx)
	})
}

// discard settles every queued unit without running it.
func (l *lane) discard() {
	l.drain(unit.discard)
}

func (l *lane) drain(handle func(unit)) {
	for {
		for {
			u, ok := l.pop()
			if !ok {
				break
			}
			handle(u)
		}
		l.draining.Store(false)

		// a unit may have been pushed after the last pop but before the
		// release; if so and nobody else claimed it, keep draining
		if l.empty() || !l.draining.CompareAndSwap(false, true) {
			return
		}
	}
}

func (l *lane) pop() (unit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.queue.Dequeue()
	if !ok {
		return nil, false
	}
	return v.(unit), true
}

func (l *lane) empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Empty()
}

func (l *lane) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Size()
}
