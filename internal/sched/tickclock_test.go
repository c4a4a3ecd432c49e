package sched

import (
	"testing"
	"time"
)

func TestTickClockEmitsAndStops(t *testing.T) {
	c := NewTickClock(4)
	c.Start(time.Millisecond)

	for range 3 {
		select {
		case <-c.Ch:
		case <-time.After(time.Second):
			t.Fatal("no tick")
		}
	}
	if c.Count() < 3 {
		t.Fatalf("Count() = %d, want >= 3", c.Count())
	}

	c.Stop()
	c.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-c.Ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("tick channel not closed after Stop")
		}
	}
}

func TestTickClockDropsWhenConsumerLags(t *testing.T) {
	c := NewTickClock(1)
	c.Start(time.Millisecond)
	defer c.Stop()

	time.Sleep(20 * time.Millisecond)
	if c.Dropped() == 0 {
		t.Fatal("expected dropped ticks with a full buffer")
	}
	if c.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 buffered tick", c.Count())
	}
}
