// Package pulse defines the clock pulse handed to every temporal target on
// each simulation tick, and the generator that numbers them.
package pulse

import "fmt"

// Pulse describes one elapsed interval of simulation time.
// A pulse is shared read-only by every target of a tick and must not be
// modified after it has been generated.
type Pulse struct {
	ID       uint64  // monotonic, first pulse is 1
	Elapsed  float64 // millisols covered by this pulse
	Sol      int     // mission sol, starting at 1
	Millisol float64 // time of sol at the end of the pulse, [0, 1000)

	NewSol          bool
	NewHalfSol      bool
	NewIntMillisol  bool
	NewHalfMillisol bool
}

// Target is implemented by every simulated entity that advances with
// simulation time. TimePassing may be called from any goroutine.
// Targets are registered by identity, so implementations should be pointers.
type Target interface {
	TimePassing(p *Pulse) error
}

// AddElapsed returns a copy of the pulse covering extra millisols on top of
// its own elapsed time. Used when skipped pulses are collapsed into one.
func (p *Pulse) AddElapsed(msols float64) *Pulse {
	cp := *p
	cp.Elapsed += msols
	return &cp
}

func (p *Pulse) String() string {
	return fmt.Sprintf("pulse#%d(%.3f msol, sol %d %07.3f)", p.ID, p.Elapsed, p.Sol, p.Millisol)
}
