// Package worker provides the main loop for running council workers on Redis.
//
// # Overview
//
// A worker claims subtasks from the shared main queue, resolves the model
// each one names, hands it to an llm.Executor and publishes the response on
// the subtask's result list, where the producer is waiting.
//
// # Claim and Commit
//
// Claiming atomically moves a payload from the main queue into the worker's
// private processing list. The payload stays there until its response has
// been published; removing it is the commit. A worker that dies between claim
// and commit leaves the payload behind for recovery instead of losing it.
//
//	IDLE → CLAIMED → PROCESSING → PUBLISHING → IDLE
//	                              PUBLISH_FAILED → IDLE (task retained)
//
// # Heartbeat and Recovery
//
// Each worker renews a heartbeat key (default every 20s with a 60s TTL) for
// its whole lifetime and deletes it on clean shutdown. Recover scans every
// processing list and moves the tasks of workers without a heartbeat back to
// the tail of the main queue. A worker runs one pass at start-up and, when
// RecoveryInterval is set, periodically afterwards. Delivery is at-least-once.
//
// # Usage
//
//	func main() {
//	    exec := llm.ExecutorFunc(func(ctx context.Context, st types.Subtask, m llm.Model) (types.Response, error) {
//	        return types.Response{Content: "OK", Success: true}, nil
//	    })
//
//	    // Run the worker (blocks until SIGTERM/SIGINT)
//	    if err := worker.Run(exec, []llm.Model{llm.NewModel("m1")}, worker.Options{}); err != nil {
//	        log.Fatalf("Worker failed: %v", err)
//	    }
//	}
//
// Embedders that manage their own broker connection and lifecycle use New
// and (*Worker).Run with a context instead.
//
// # Configuration
//
// Run reads council.yaml (see package component) and the COUNCIL_* environment
// variables. Explicit Options values always win.
//
// # Graceful Shutdown
//
// Cancellation stops the loop at the next poll. A task already claimed is
// processed and published first, then the heartbeat is deleted and the
// worker deregisters. Run waits up to ShutdownTimeout for this to finish.
package worker
