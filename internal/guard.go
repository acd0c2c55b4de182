package anttop

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned when a fetch cycle is already in flight
var ErrBusy = errors.New("a fetch is already in progress")

// GuardState is the state of a fetch guard
type GuardState int32

const (
	Idle GuardState = iota
	Fetching
)

func (s GuardState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// Guard allows one fetch cycle at a time. The only transitions are
// Idle -> Fetching (Begin) and Fetching -> Idle (End); a Begin while
// fetching is rejected with ErrBusy and leaves the state alone.
type Guard struct {
	state atomic.Int32
}

func (g *Guard) Begin() error {
	if !g.state.CompareAndSwap(int32(Idle), int32(Fetching)) {
		return ErrBusy
	}
	return nil
}

// End returns the guard to Idle. It reports false if no cycle was running.
func (g *Guard) End() bool {
	return g.state.CompareAndSwap(int32(Fetching), int32(Idle))
}

func (g *Guard) State() GuardState {
	return GuardState(g.state.Load())
}
