// Package clock drives the simulation: it turns wall-clock ticks into
// numbered pulses and applies each one to every registered target.
package clock

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"ticksim/internal/pulse"
	"ticksim/internal/sched"
)

// ErrRunning is returned when Run is called on a clock that is already running.
var ErrRunning = errors.New("clock: already running")

// MasterClock owns the pulse generator and feeds the broadcaster one pulse
// per tick. Only one pulse is ever in flight.
type MasterClock struct {
	id          uuid.UUID
	cfg         sched.Config
	gen         *pulse.Generator
	broadcaster *sched.Broadcaster
	logger      *log.Logger

	running atomic.Bool
	paused  atomic.Bool
}

// New creates a clock whose calendar starts at sol 1, millisol 0.
func New(cfg sched.Config, b *sched.Broadcaster, logger *log.Logger) *MasterClock {
	if logger == nil {
		logger = log.Default()
	}
	id := uuid.New()
	return &MasterClock{
		id:          id,
		cfg:         cfg,
		gen:         pulse.NewGenerator(0, cfg.PulseLog),
		broadcaster: b,
		logger:      logger.With("run", id.String()[:8]),
	}
}

// RunID identifies this clock in logs and event feeds.
func (m *MasterClock) RunID() uuid.UUID { return m.id }

// SetPaused pauses or resumes Run. Ticks that arrive while paused fire nothing.
func (m *MasterClock) SetPaused(paused bool) {
	if m.paused.Swap(paused) != paused {
		m.logger.Info("clock paused", "paused", paused)
	}
}

func (m *MasterClock) Paused() bool { return m.paused.Load() }

// Generator exposes the pulse generator for diagnostics.
func (m *MasterClock) Generator() *pulse.Generator { return m.gen }

// Step fires one pulse and blocks until the broadcaster has applied it.
func (m *MasterClock) Step(ctx context.Context) (*pulse.Pulse, error) {
	p := m.gen.Next(m.cfg.MillisolsPerTick)
	if p.NewSol {
		m.logger.Info("- - - - - - - - Sol "+strconv.Itoa(p.Sol)+" - - - - - - - -", "pulse", p.ID)
	}
	return p, m.broadcaster.ApplyPulse(ctx, p)
}

// Run fires a pulse on every tick of the configured interval until ctx is
// done or, when limit is positive, limit pulses have been applied.
func (m *MasterClock) Run(ctx context.Context, limit uint64) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer m.running.Store(false)

	tc := sched.NewTickClock(1)
	tc.Start(m.cfg.TickInterval())
	defer tc.Stop()

	m.logger.Info("clock started", "tick", m.cfg.TickInterval(), "msol_per_tick", m.cfg.MillisolsPerTick)
	var fired uint64
	defer func() {
		m.logger.Info("clock stopped", "pulses", fired, "dropped_ticks", tc.Dropped(), "rate", m.gen.PulseRate())
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-tc.Ch:
			if !ok {
				return nil
			}
			if m.Paused() {
				continue
			}
			if _, err := m.Step(ctx); err != nil {
				return err
			}
			fired++
			if limit > 0 && fired >= limit {
				return nil
			}
		}
	}
}
