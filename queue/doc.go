// Package queue provides the Redis-based broker primitives for distributed
// subtask dispatch.
//
// Producers push task envelopes onto a shared main queue and block on a
// per-subtask result list. Workers claim tasks by atomically moving them into a
// private processing list, publish a response, and only then remove the claim.
// A claim that is never removed belongs to a worker that died mid-task; the
// recovery pass moves it back onto the main queue once the worker's heartbeat
// has expired. Delivery is at-least-once.
//
// # Core Components
//
// Client: Interface for the broker operations. Provides methods for:
//   - Enqueue/AwaitResult on the producer side
//   - Claim/PublishResult/Commit on the worker side
//   - Heartbeat/IsAlive for worker liveness
//   - ProcessingWorkers/Requeue/DeadLetter for recovery
//
// TaskEnvelope and ResponseEnvelope: the JSON wire forms of types.Subtask and
// types.Response. Encoding never fails; decoding only fails when the payload is
// not a JSON object, and fills defaults for anything missing.
//
// # Redis Key Schema
//
// All keys share a namespace prefix (default "ai_council"):
//   - <ns>:tasks - List, the main queue (RPUSH in, BLMOVE LEFT out)
//   - <ns>:tasks:processing:<worker_id> - List, a worker's claimed payloads
//   - <ns>:results:<subtask_id> - List, responses for one subtask, with TTL
//   - <ns>:worker:heartbeat:<worker_id> - String with TTL, worker liveness
//   - <ns>:tasks:deadletter - List, payloads that can never produce a result
//
// # Usage Example
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{
//		URL:       "redis://localhost:6379",
//		Namespace: "ai_council",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	payload := queue.EncodeTask(subtask, "gpt-4")
//	if err := client.Enqueue(ctx, payload); err != nil {
//		return err
//	}
//
//	raw, err := client.AwaitResult(ctx, subtask.ID, 120*time.Second)
//	if errors.Is(err, queue.ErrNoResult) {
//		// no worker answered in time
//	}
package queue
