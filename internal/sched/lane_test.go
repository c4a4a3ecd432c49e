package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// probe is a unit that checks it never shares its lane with a running peer.
type probe struct {
	id        int
	active    *atomic.Int32
	overlap   *atomic.Bool
	mu        *sync.Mutex
	order     *[]int
	done      *sync.WaitGroup
	discarded *atomic.Int32
}

func (p *probe) run(context.Context) {
	if p.active.Add(1) > 1 {
		p.overlap.Store(true)
	}
	time.Sleep(50 * time.Microsecond)
	p.mu.Lock()
	*p.order = append(*p.order, p.id)
	p.mu.Unlock()
	p.active.Add(-1)
	p.done.Done()
}

func (p *probe) discard() {
	p.discarded.Add(1)
	p.done.Done()
}

type probeSet struct {
	active    atomic.Int32
	overlap   atomic.Bool
	mu        sync.Mutex
	order     []int
	done      sync.WaitGroup
	discarded atomic.Int32
}

func (s *probeSet) next(id int) *probe {
	s.done.Add(1)
	return &probe{
		id:        id,
		active:    &s.active,
		overlap:   &s.overlap,
		mu:        &s.mu,
		order:     &s.order,
		done:      &s.done,
		discarded: &s.discarded,
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("units never finished")
	}
}

func TestLaneRunsUnitsInFIFOOrder(t *testing.T) {
	p := newPool(4, 64)
	defer p.stop(time.Second)

	l := newLane(p)
	var set probeSet
	for i := range 100 {
		l.execute(set.next(i))
	}
	waitGroup(t, &set.done)

	if set.overlap.Load() {
		t.Fatal("two units of one lane ran at once")
	}
	for i, id := range set.order {
		if id != i {
			t.Fatalf("order[%d] = %d, want FIFO", i, id)
		}
	}
}

func TestLaneConcurrentProducersLoseNothing(t *testing.T) {
	p := newPool(4, 64)
	defer p.stop(time.Second)

	l := newLane(p)
	var set probeSet
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for g := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				l.execute(set.next(g*perProducer + i))
			}
		}()
	}
	wg.Wait()
	waitGroup(t, &set.done)

	if set.overlap.Load() {
		t.Fatal("two units of one lane ran at once")
	}
	if got := len(set.order); got != producers*perProducer {
		t.Fatalf("ran %d units, want %d", got, producers*perProducer)
	}
	if l.draining.Load() || l.len() != 0 {
		t.Fatal("lane left draining or non-empty")
	}
}

func TestLanesRunInParallel(t *testing.T) {
	p := newPool(2, 16)
	defer p.stop(time.Second)

	gate := make(chan struct{})
	var inside sync.WaitGroup
	inside.Add(2)
	var wg sync.WaitGroup
	for range 2 {
		l := newLane(p)
		wg.Add(1)
		l.execute(funcUnit(func() {
			inside.Done()
			<-gate
			wg.Done()
		}))
	}

	// both lanes must be inside their unit at the same time
	waitGroup(t, &inside)
	close(gate)
	waitGroup(t, &wg)
}

func TestLaneOnStoppedPoolDiscards(t *testing.T) {
	p := newPool(2, 16)
	p.stop(time.Second)

	l := newLane(p)
	var set probeSet
	for i := range 5 {
		l.execute(set.next(i))
	}
	waitGroup(t, &set.done)

	if got := set.discarded.Load(); got != 5 {
		t.Fatalf("discarded %d units, want 5", got)
	}
	if l.draining.Load() {
		t.Fatal("lane still marked draining")
	}
}

type funcUnit func()

func (f funcUnit) run(context.Context) { f() }
func (f funcUnit) discard()            {}
