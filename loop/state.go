package loop

import (
	"sync/atomic"
)

// State is the lifecycle state of a Loop.
//
//	StateStopped  -> StateRunning  [Run]
//	StateRunning  -> StateStopping [Stop, Shutdown, or Run's ctx done]
//	StateStopping -> StateStopped  [modules stopped, tasks dropped]
type State uint32

const (
	// StateStopped indicates the loop is not running. It may be run.
	StateStopped State = iota
	// StateRunning indicates the loop is ticking.
	StateRunning
	// StateStopping indicates a stop was requested, and the loop is
	// finishing its in-flight tick then stopping its modules.
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) Load() State { return State(s.v.Load()) }

// Store unconditionally stores state. Only use for the terminal transition of
// a run, to StateStopped.
func (s *fastState) Store(state State) { s.v.Store(uint32(state)) }

// TryTransition attempts to atomically transition from one state to another.
func (s *fastState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
