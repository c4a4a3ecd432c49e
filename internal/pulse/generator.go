package pulse

import (
	"math"
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

const (
	millisolsPerSol = 1000.0
	halfSol         = millisolsPerSol / 2

	// DefaultLogSize is the number of fire timestamps kept for rate estimates.
	DefaultLogSize = 20
)

// Generator hands out numbered pulses and tracks the mission calendar.
type Generator struct {
	mu              sync.Mutex
	nextID          uint64
	total           float64 // millisols since sol 1, millisol 0
	lastSol         int
	lastMillisol    float64
	lastIntMillisol int
	fired           *circularbuffer.Queue // time.Time of the most recent pulses
	now             func() time.Time
}

// NewGenerator creates a generator whose calendar starts at the given
// millisol total. logSize bounds the pulse log used by PulseRate.
func NewGenerator(start float64, logSize int) *Generator {
	if start < 0 {
		start = 0
	}
	if logSize < 2 {
		logSize = DefaultLogSize
	}
	sol, msol := calendar(start)
	return &Generator{
		nextID:          1,
		total:           start,
		lastSol:         sol,
		lastMillisol:    msol,
		lastIntMillisol: int(msol),
		fired:           circularbuffer.New(logSize),
		now:             time.Now,
	}
}

// Next advances the calendar by elapsed millisols and returns the pulse
// covering that interval. Negative durations are treated as zero.
func (g *Generator) Next(elapsed float64) *Pulse {
	if elapsed < 0 || math.IsNaN(elapsed) {
		elapsed = 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.total += elapsed
	sol, msol := calendar(g.total)

	newSol := sol != g.lastSol
	newHalfSol := newSol
	if newSol {
		g.lastSol = sol
	} else {
		newHalfSol = g.lastMillisol < halfSol && msol >= halfSol
	}

	intMsol := int(msol)
	newInt := intMsol != g.lastIntMillisol
	newHalfMsol := newInt
	if newInt {
		g.lastIntMillisol = intMsol
	} else {
		lastFrac := g.lastMillisol - math.Floor(g.lastMillisol)
		curFrac := msol - math.Floor(msol)
		newHalfMsol = lastFrac < .5 && curFrac >= .5
	}
	g.lastMillisol = msol

	id := g.nextID
	g.nextID++
	g.fired.Enqueue(g.now())

	return &Pulse{
		ID:              id,
		Elapsed:         elapsed,
		Sol:             sol,
		Millisol:        msol,
		NewSol:          newSol,
		NewHalfSol:      newHalfSol,
		NewIntMillisol:  newInt,
		NewHalfMillisol: newHalfMsol,
	}
}

// Total returns the number of pulses generated so far.
func (g *Generator) Total() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextID - 1
}

// PulseRate estimates pulses per real second over the pulse log.
// Returns 0 until at least two pulses have been logged.
func (g *Generator) PulseRate() float64 {
	g.mu.Lock()
	values := g.fired.Values()
	g.mu.Unlock()

	if len(values) < 2 {
		return 0
	}
	first := values[0].(time.Time)
	last := values[len(values)-1].(time.Time)
	span := last.Sub(first).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(values)-1) / span
}

func calendar(total float64) (sol int, msol float64) {
	return int(total/millisolsPerSol) + 1, math.Mod(total, millisolsPerSol)
}
