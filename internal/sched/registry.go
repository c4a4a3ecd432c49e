package sched

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"golang.org/x/time/rate"

	"ticksim/internal/pulse"
)

// entry is the registration record of one target.
type entry struct {
	target      pulse.Target
	name        string
	minInterval time.Duration
	removed     atomic.Bool
	lane        atomic.Pointer[lane] // ordered mode only, created on first pulse

	failures atomic.Uint64
	// running failure tally, at most once every ten seconds
	failTally rate.Sometimes

	mu            sync.Mutex // guards the throttle state below
	lastDelivered time.Time
	skipped       float64 // millisols collapsed from skipped pulses
}

func newEntry(t pulse.Target, minInterval time.Duration, now time.Time) *entry {
	return &entry{
		target:        t,
		name:          targetName(t),
		minInterval:   minInterval,
		failTally:     rate.Sometimes{Interval: 10 * time.Second},
		lastDelivered: now,
	}
}

// admit applies the throttle. A pulse arriving before minInterval has passed
// since the last delivery is skipped and its elapsed time carried over to
// the next pulse that gets through.
func (e *entry) admit(p *pulse.Pulse, now time.Time) (*pulse.Pulse, bool) {
	if e.minInterval <= 0 {
		return p, true
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if now.Sub(e.lastDelivered) < e.minInterval {
		e.skipped += p.Elapsed
		return nil, false
	}
	if e.skipped > 0 {
		p = p.AddElapsed(e.skipped)
		e.skipped = 0
	}
	e.lastDelivered = now
	return p, true
}

// deliver calls the target, turning a panic into an error.
func (e *entry) deliver(p *pulse.Pulse) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.target.TimePassing(p)
}

// laneFor returns the entry's lane, creating it on first use.
func (e *entry) laneFor(p *pool) *lane {
	if l := e.lane.Load(); l != nil {
		return l
	}
	l := newLane(p)
	if e.lane.CompareAndSwap(nil, l) {
		return l
	}
	return e.lane.Load()
}

// release marks the entry removed and drops its lane. Units already queued
// for it settle their barrier without calling the target.
func (e *entry) release() {
	e.removed.Store(true)
	e.lane.Store(nil)
}

// registry is an insertion-ordered set of targets. Writers serialize on mu
// and republish an immutable snapshot; readers never lock.
type registry struct {
	mu      sync.Mutex
	entries *linkedhashmap.Map // pulse.Target -> *entry
	snap    atomic.Pointer[[]*entry]
}

func newRegistry() *registry {
	r := &registry{entries: linkedhashmap.New()}
	r.publish()
	return r
}

// add and remove report false for keys the map cannot hash, such as a
// struct whose interface field holds a slice.
func (r *registry) add(t pulse.Target, minInterval time.Duration, now time.Time) (added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if recover() != nil {
			added = false
		}
	}()

	if _, found := r.entries.Get(t); found {
		return false
	}
	r.entries.Put(t, newEntry(t, minInterval, now))
	r.publish()
	return true
}

func (r *registry) remove(t pulse.Target) (removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if recover() != nil {
			removed = false
		}
	}()

	v, found := r.entries.Get(t)
	if !found {
		return false
	}
	r.entries.Remove(t)
	v.(*entry).release()
	r.publish()
	return true
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.entries.Values() {
		v.(*entry).release()
	}
	r.entries.Clear()
	r.publish()
}

// snapshot returns the current membership. The slice must not be modified.
func (r *registry) snapshot() []*entry {
	return *r.snap.Load()
}

func (r *registry) publish() {
	values := r.entries.Values()
	snap := make([]*entry, len(values))
	for i, v := range values {
		snap[i] = v.(*entry)
	}
	r.snap.Store(&snap)
}

// hashable reports whether t can be used as a registry key.
func hashable(t pulse.Target) (ok bool) {
	if !reflect.TypeOf(t).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = map[pulse.Target]struct{}{t: {}}
	return true
}

func targetName(t pulse.Target) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	if reflect.TypeOf(t).Kind() == reflect.Pointer {
		return fmt.Sprintf("%T(%p)", t, t)
	}
	return fmt.Sprintf("%T", t)
}
