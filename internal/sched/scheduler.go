// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"ticksim/internal/pulse"
)

// ErrNilPulse is returned by ApplyPulse when called without a pulse.
var ErrNilPulse = errors.New("sched: nil pulse")

// State is the lifecycle state of a Broadcaster.
type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats are cumulative counters since construction.
type Stats struct {
	Targets       int
	Ticks         uint64 // pulses fully applied
	Delivered     uint64
	Failed        uint64
	Skipped       uint64 // throttled
	Discarded     uint64 // removed targets and work cancelled by Stop
	Interrupted   uint64
	TimedOut      uint64
	DroppedEvents uint64
}

type counters struct {
	ticks, delivered, failed, skipped, discarded atomic.Uint64
	interrupted, timedOut, droppedEvents         atomic.Uint64
}

// Broadcaster fans each clock pulse out to every registered target on a
// shared worker pool and blocks the caller until the tick is applied.
type Broadcaster struct {
	cfg    Config
	logger *log.Logger
	state  atomic.Int32
	pool   *pool
	reg    *registry
	now    func() time.Time
	stats  counters

	// status stream, closed by Stop
	evMu     sync.RWMutex
	evClosed bool
	statusCh chan StatusEvent

	// logging-related
	csvMu     sync.Mutex
	csvFile   *os.File
	csvWriter *csv.Writer
}

// New starts the worker pool and returns a running Broadcaster.
// A nil logger falls back to the package default.
func New(cfg Config, logger *log.Logger) *Broadcaster {
	cfg = cfg.normalize()
	if logger == nil {
		logger = log.Default()
	}
	b := &Broadcaster{
		cfg:      cfg,
		logger:   logger,
		pool:     newPool(cfg.Workers, cfg.QueueDepth),
		reg:      newRegistry(),
		now:      time.Now,
		statusCh: make(chan StatusEvent, cfg.EventBuffer),
	}
	logger.Debug("broadcaster started", "workers", cfg.Workers, "ordered", cfg.Ordered)
	return b
}

// Config returns the normalized configuration in use.
func (b *Broadcaster) Config() Config { return b.cfg }

// State reports the lifecycle state.
func (b *Broadcaster) State() State { return State(b.state.Load()) }

func (b *Broadcaster) running() bool { return b.State() == StateRunning }

// Add registers t. It reports whether t was newly added; nil, duplicate and
// post-Stop registrations are ignored.
func (b *Broadcaster) Add(t pulse.Target) bool {
	return b.AddThrottled(t, 0)
}

// AddThrottled registers t so that it receives at most one pulse per
// minInterval of wall time. Skipped pulses are folded into the next one it
// receives.
func (b *Broadcaster) AddThrottled(t pulse.Target, minInterval time.Duration) bool {
	if t == nil || !b.running() {
		return false
	}
	if !hashable(t) {
		b.logger.Warn("ignoring target that cannot be used as a key", "target", targetName(t))
		return false
	}
	return b.reg.add(t, minInterval, b.now())
}

// Remove deregisters t and drops its lane. A delivery already running for t
// completes; one still queued is skipped.
func (b *Broadcaster) Remove(t pulse.Target) bool {
	if t == nil || !b.running() || !hashable(t) {
		return false
	}
	return b.reg.remove(t)
}

// Len returns the number of registered targets.
func (b *Broadcaster) Len() int {
	return len(b.reg.snapshot())
}

// ApplyPulse delivers p to every target registered when the call starts
// and waits until each delivery has finished or failed.
//
// If ctx is cancelled, or the configured tick timeout expires, first,
// ApplyPulse logs a warning and returns nil; deliveries already dispatched
// keep running in the background. After Stop it does nothing.
func (b *Broadcaster) ApplyPulse(ctx context.Context, p *pulse.Pulse) error {
	if p == nil {
		return ErrNilPulse
	}
	if !b.running() {
		return nil
	}

	targets := b.reg.snapshot()
	if len(targets) == 0 {
		return nil
	}

	start := time.Now()
	bar := newBarrier(len(targets))
	for _, e := range targets {
		d := &delivery{b: b, entry: e, pulse: p, barrier: bar}
		if e.removed.Load() {
			d.discard()
			continue
		}
		if b.cfg.Ordered {
			e.laneFor(b.pool).execute(d)
			continue
		}
		if !b.pool.submit(d) {
			d.discard()
		}
	}

	var timeout <-chan time.Time
	if d := b.cfg.TickTimeout(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-bar.done:
		b.stats.ticks.Add(1)
		b.emit(StatusEvent{
			Time:     time.Now(),
			Kind:     StatusTick,
			PulseID:  p.ID,
			Targets:  len(targets),
			Duration: time.Since(start),
		})
	case <-ctx.Done():
		b.stats.interrupted.Add(1)
		b.logger.Warn("pulse wait interrupted", "pulse", p.ID, "outstanding", bar.outstanding(), "err", ctx.Err())
		b.emit(StatusEvent{
			Time:        time.Now(),
			Kind:        StatusInterrupted,
			PulseID:     p.ID,
			Targets:     len(targets),
			Outstanding: bar.outstanding(),
			Duration:    time.Since(start),
		})
	case <-timeout:
		b.stats.timedOut.Add(1)
		b.logger.Warn("pulse wait timed out", "pulse", p.ID, "outstanding", bar.outstanding(), "timeout", b.cfg.TickTimeout())
		b.emit(StatusEvent{
			Time:        time.Now(),
			Kind:        StatusTimeout,
			PulseID:     p.ID,
			Targets:     len(targets),
			Outstanding: bar.outstanding(),
			Duration:    time.Since(start),
		})
	}
	return nil
}

// Stop cancels queued work, waits up to the shutdown timeout for workers to
// exit, and releases every registration. Only the first call has an effect.
func (b *Broadcaster) Stop() {
	if !b.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}

	if !b.pool.stop(b.cfg.ShutdownTimeout()) {
		b.logger.Warn("workers did not exit in time, abandoning them", "timeout", b.cfg.ShutdownTimeout())
	}
	b.reg.clear()

	b.emit(StatusEvent{Time: time.Now(), Kind: StatusStop})
	b.closeEvents()
	b.state.Store(int32(StateStopped))
	b.logger.Info("broadcaster stopped", "ticks", b.stats.ticks.Load())
}

// Stats returns a snapshot of the counters.
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Targets:       b.Len(),
		Ticks:         b.stats.ticks.Load(),
		Delivered:     b.stats.delivered.Load(),
		Failed:        b.stats.failed.Load(),
		Skipped:       b.stats.skipped.Load(),
		Discarded:     b.stats.discarded.Load(),
		Interrupted:   b.stats.interrupted.Load(),
		TimedOut:      b.stats.timedOut.Load(),
		DroppedEvents: b.stats.droppedEvents.Load(),
	}
}

// Events exposes the read-only status stream. Events are dropped, not
// queued, when nobody keeps up; the channel is closed by Stop.
func (b *Broadcaster) Events() <-chan StatusEvent { return b.statusCh }

func (b *Broadcaster) targetFailed(e *entry, p *pulse.Pulse, err error) {
	b.stats.failed.Add(1)
	n := e.failures.Add(1)
	b.logger.Error("target failed to process pulse", "pulse", p.ID, "target", e.name, "err", err)
	if n > 1 {
		e.failTally.Do(func() {
			b.logger.Debug("target keeps failing", "target", e.name, "failures", n)
		})
	}
	b.emit(StatusEvent{
		Time:    time.Now(),
		Kind:    StatusFail,
		PulseID: p.ID,
		Target:  e.name,
		Err:     err.Error(),
	})
}

// EnableCSVLogging opens the given file path for CSV logging of events.
func (b *Broadcaster) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"timestamp", "event", "pulse", "target", "targets", "outstanding", "duration_us", "err"})
	w.Flush()

	b.csvMu.Lock()
	b.csvFile = f
	b.csvWriter = w
	b.csvMu.Unlock()
	return nil
}

func (b *Broadcaster) emit(ev StatusEvent) {
	b.writeCSV(ev)

	b.evMu.RLock()
	defer b.evMu.RUnlock()
	if b.evClosed {
		return
	}
	select {
	case b.statusCh <- ev:
	default:
		b.stats.droppedEvents.Add(1)
	}
}

func (b *Broadcaster) writeCSV(ev StatusEvent) {
	b.csvMu.Lock()
	defer b.csvMu.Unlock()
	if b.csvWriter == nil {
		return
	}
	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		ev.Kind.String(),
		strconv.FormatUint(ev.PulseID, 10),
		ev.Target,
		strconv.Itoa(ev.Targets),
		strconv.Itoa(ev.Outstanding),
		strconv.FormatInt(ev.Duration.Microseconds(), 10),
		ev.Err,
	}
	b.csvWriter.Write(rec)
	b.csvWriter.Flush()
}

func (b *Broadcaster) closeEvents() {
	b.evMu.Lock()
	if !b.evClosed {
		b.evClosed = true
		close(b.statusCh)
	}
	b.evMu.Unlock()

	b.csvMu.Lock()
	defer b.csvMu.Unlock()
	if b.csvFile != nil {
		b.csvWriter.Flush()
		b.csvFile.Close()
		b.csvFile = nil
		b.csvWriter = nil
	}
}
