package sched

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// pool is the fixed set of workers shared by every delivery and lane.
type pool struct {
	size   int
	queue  chan unit
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.RWMutex // held for read while submitting
	closed bool
}

func newPool(size, depth int) *pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &pool{
		size:   size,
		queue:  make(chan unit, depth),
		ctx:    ctx,
		cancel: cancel,
	}
	for range size {
		p.group.Go(func() error {
			p.work()
			return nil
		})
	}
	return p
}

func (p *pool) work() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case u := <-p.queue:
			if p.ctx.Err() != nil {
				u.discard()
				return
			}
			u.run(p.ctx)
		}
	}
}

// submit queues u, blocking while the queue is full.
// It returns false once the pool is stopping; the caller still owns u.
func (p *pool) submit(u unit) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	select {
	case p.queue <- u:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// stop cancels queued work and waits up to timeout for the workers to
// return. It reports whether every worker exited in time.
func (p *pool) stop(timeout time.Duration) bool {
	p.cancel()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	graceful := true
	select {
	case <-done:
	case <-timer.C:
		graceful = false
	}

	// nothing can be submitted any more; settle whatever never started
	for {
		select {
		case u := <-p.queue:
			u.discard()
		default:
			return graceful
		}
	}
}
