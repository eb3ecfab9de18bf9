package queue

import (
	"errors"
	"time"
)

// ErrNoResult is returned by AwaitResult when the wait window elapses empty.
var ErrNoResult = errors.New("no result before timeout")

// Claim is a payload moved from the main queue into a worker's processing list.
// The payload stays in the processing list until it is committed, dead-lettered
// or recovered, so Payload must be passed back verbatim.
type Claim struct {
	// WorkerID is the worker holding the claim.
	WorkerID string

	// Payload is the raw task envelope exactly as stored.
	Payload string

	// ClaimedAt is when the worker took the payload off the main queue.
	ClaimedAt time.Time
}

// Age returns how long the claim has been held.
func (c *Claim) Age() time.Duration {
	if c.ClaimedAt.IsZero() {
		return 0
	}
	return time.Since(c.ClaimedAt)
}

// RecoveryReport summarizes one pass over the processing lists.
type RecoveryReport struct {
	// Scanned is the number of processing lists found.
	Scanned int

	// Skipped lists the workers whose heartbeat was live.
	Skipped []string

	// Recovered maps a dead worker id to the number of payloads moved back.
	Recovered map[string]int
}

// Total returns the number of payloads moved back to the main queue.
func (r RecoveryReport) Total() int {
	n := 0
	for _, c := range r.Recovered {
		n += c
	}
	return n
}
