package colony

import (
	"errors"
	"fmt"
	"sync"

	"ticksim/internal/pulse"
)

// SecondsPerMillisol is the length of a millisol in Earth seconds.
const SecondsPerMillisol = 88.775244

// ErrStalePulse is returned when a building sees a pulse that does not
// come after the last one it processed.
var ErrStalePulse = errors.New("colony: stale pulse")

// Building integrates the output of its heat sources over simulation time.
type Building struct {
	Name string

	env     *Environment
	mu      sync.Mutex
	sources []HeatSource
	heat    float64 // kJ produced so far
	last    uint64  // id of the last pulse processed
	pulses  int
}

// NewBuilding creates a building bound to the shared environment.
func NewBuilding(name string, env *Environment, sources ...HeatSource) *Building {
	return &Building{Name: name, env: env, sources: sources}
}

// TimePassing advances the building by the pulse's elapsed time.
func (b *Building) TimePassing(p *pulse.Pulse) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.ID <= b.last {
		return fmt.Errorf("%s: got pulse %d after %d: %w", b.Name, p.ID, b.last, ErrStalePulse)
	}
	b.last = p.ID
	b.pulses++

	seconds := p.Elapsed * SecondsPerMillisol
	for _, src := range b.sources {
		b.heat += src.Output(b.env) * seconds
	}
	return nil
}

// SetLoad changes the load of every electric and fuel heater.
func (b *Building) SetLoad(load float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.sources {
		if k := b.sources[i].Kind; k == ElectricHeat || k == FuelHeat {
			b.sources[i].Load = load
		}
	}
}

// Heat returns the heat produced so far, in kJ.
func (b *Building) Heat() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heat
}

// Pulses returns the number of pulses processed.
func (b *Building) Pulses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pulses
}

func (b *Building) String() string { return "building:" + b.Name }
