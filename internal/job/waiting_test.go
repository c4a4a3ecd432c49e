package job

import (
	"testing"
	"time"

	"ticksim/internal/pulse"
)

func TestSleeperCountsPulses(t *testing.T) {
	s := SleepWork("probe", 2)

	start := time.Now()
	s.TimePassing(&pulse.Pulse{ID: 1, Elapsed: 0.5})
	s.TimePassing(&pulse.Pulse{ID: 2, Elapsed: 1.25})

	if time.Since(start) < 4*time.Millisecond {
		t.Fatal("sleeper did not sleep")
	}
	if s.Pulses() != 2 || s.Elapsed() != 1.75 {
		t.Fatalf("pulses=%d elapsed=%v", s.Pulses(), s.Elapsed())
	}
	if s.String() != "sleeper:probe" {
		t.Fatalf("String() = %q", s.String())
	}
}
