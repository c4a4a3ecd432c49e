// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of broadcaster event
type StatusKind int

const (
	StatusTick StatusKind = iota
	StatusFail
	StatusSkip
	StatusInterrupted
	StatusTimeout
	StatusStop
)

// StatusEvent is emitted once per completed tick and on key actions.
type StatusEvent struct {
	Time        time.Time     `json:"time"`
	Kind        StatusKind    `json:"kind"`
	PulseID     uint64        `json:"pulse,omitempty"`
	Target      string        `json:"target,omitempty"`
	Targets     int           `json:"targets,omitempty"`     // units dispatched for the tick
	Outstanding int           `json:"outstanding,omitempty"` // units still running when the wait ended
	Duration    time.Duration `json:"duration,omitempty"`
	Err         string        `json:"err,omitempty"`
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusTick:
		return "Tick"
	case StatusFail:
		return "Fail"
	case StatusSkip:
		return "Skip"
	case StatusInterrupted:
		return "Interrupted"
	case StatusTimeout:
		return "Timeout"
	case StatusStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// MarshalText keeps the kind readable in JSON feeds.
func (sk StatusKind) MarshalText() ([]byte, error) {
	return []byte(sk.String()), nil
}
