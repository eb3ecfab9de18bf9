// Package types defines the values that cross the dispatch boundary between
// producers and workers.
//
// A Subtask is what a producer hands to the queue, a Response (with its
// embedded SelfAssessment) is what a worker hands back. Both are plain values
// with no broker knowledge; the wire form lives in package queue.
//
//	st := types.NewSubtask("s1", "summarise the findings")
//	st.TaskType = types.TaskTypeResearch
//	if err := st.Validate(); err != nil {
//	    return err
//	}
//
// Failure responses are always built with NewFailureResponse so they carry an
// error message, zero confidence and CRITICAL risk:
//
//	resp := types.NewFailureResponse(st.ID, "unknown", "worker did not respond", elapsed)
//
// # Health Types
//
// HealthStatus reports the operational state of a worker and its broker:
//
//	status := types.NewHealthyStatus("heartbeat renewed")
//	if status.IsHealthy() {
//	    // serving
//	}
package types
