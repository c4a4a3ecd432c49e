package sched

import (
	"testing"
	"time"
)

func TestRegistrySnapshotIsStable(t *testing.T) {
	r := newRegistry()
	a, b, c := &recorder{}, &recorder{}, &recorder{}
	r.add(a, 0, time.Now())
	r.add(b, 0, time.Now())

	snap := r.snapshot()
	r.add(c, 0, time.Now())
	r.remove(a)

	if len(snap) != 2 || snap[0].target != a || snap[1].target != b {
		t.Fatalf("old snapshot changed: %v", snap)
	}
	if !snap[0].removed.Load() {
		t.Fatal("removed entry not marked")
	}

	now := r.snapshot()
	if len(now) != 2 || now[0].target != b || now[1].target != c {
		t.Fatalf("new snapshot = %v, want [b c] in insertion order", now)
	}
}

func TestRegistryAddRemove(t *testing.T) {
	r := newRegistry()
	a := &recorder{}

	if !r.add(a, 0, time.Now()) {
		t.Fatal("add returned false")
	}
	if r.add(a, 0, time.Now()) {
		t.Fatal("duplicate add returned true")
	}
	if !r.remove(a) {
		t.Fatal("remove returned false")
	}
	if r.remove(a) {
		t.Fatal("second remove returned true")
	}
	if n := len(r.snapshot()); n != 0 {
		t.Fatalf("len = %d, want 0", n)
	}
}

func TestRegistryClearReleasesLanes(t *testing.T) {
	p := newPool(2, 8)
	defer p.stop(time.Second)

	r := newRegistry()
	a := &recorder{}
	r.add(a, 0, time.Now())
	e := r.snapshot()[0]
	if e.laneFor(p) != e.laneFor(p) {
		t.Fatal("laneFor created two lanes")
	}

	r.clear()
	if e.lane.Load() != nil || !e.removed.Load() {
		t.Fatal("clear did not release the entry")
	}
	if len(r.snapshot()) != 0 {
		t.Fatal("registry not empty after clear")
	}
}

func TestTargetName(t *testing.T) {
	if got := targetName(sliceTarget{}); got != "sched.sliceTarget" {
		t.Fatalf("targetName = %q", got)
	}
	if got := targetName(&recorder{}); got[:16] != "*sched.recorder(" {
		t.Fatalf("targetName = %q", got)
	}
}
