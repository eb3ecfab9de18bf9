package worker

import "sync/atomic"

// State is a position in the worker's lifecycle.
type State int32

const (
	StateStarting State = iota
	StateRecovering
	StateIdle
	StateClaimed
	StateProcessing
	StatePublishing
	StatePublishFailed
	StateShuttingDown
	StateStopped
)

var stateNames = [...]string{
	StateStarting:      "starting",
	StateRecovering:    "recovering",
	StateIdle:          "idle",
	StateClaimed:       "claimed",
	StateProcessing:    "processing",
	StatePublishing:    "publishing",
	StatePublishFailed: "publish_failed",
	StateShuttingDown:  "shutting_down",
	StateStopped:       "stopped",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// stateBox holds the current state for concurrent readers.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State {
	return State(b.v.Load())
}

func (b *stateBox) store(s State) {
	b.v.Store(int32(s))
}
