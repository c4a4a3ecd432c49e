// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickClock emits ticks and counts them atomically.
type TickClock struct {
	Ch       chan struct{}
	count    atomic.Int64
	dropped  atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
// When the consumer lags and the buffer is full the tick is dropped, so a
// slow tick never stalls the clock goroutine.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case c.Ch <- struct{}{}:
					c.count.Add(1)
				default:
					c.dropped.Add(1)
				}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks. Safe to call twice.
func (c *TickClock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Count returns the number of ticks emitted.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Dropped returns the number of ticks lost to a lagging consumer.
func (c *TickClock) Dropped() int64 {
	return c.dropped.Load()
}
