package job

import (
	"sync/atomic"
	"time"

	"ticksim/internal/pulse"
)

// Sleeper is a target that just sleeps for a fixed duration on every pulse.
// It stands in for an entity with an expensive update.
type Sleeper struct {
	Name  string
	Delay time.Duration

	pulses atomic.Uint64
	msols  atomic.Uint64 // elapsed millisols, in thousandths
}

// SleepWork returns a sleeper that blocks for ms milliseconds per pulse.
func SleepWork(name string, ms int64) *Sleeper {
	return &Sleeper{Name: name, Delay: time.Duration(ms) * time.Millisecond}
}

func (s *Sleeper) TimePassing(p *pulse.Pulse) error {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.pulses.Add(1)
	s.msols.Add(uint64(p.Elapsed * 1000))
	return nil
}

// Pulses returns the number of pulses processed.
func (s *Sleeper) Pulses() uint64 { return s.pulses.Load() }

// Elapsed returns the total millisols covered by processed pulses.
func (s *Sleeper) Elapsed() float64 { return float64(s.msols.Load()) / 1000 }

func (s *Sleeper) String() string { return "sleeper:" + s.Name }
