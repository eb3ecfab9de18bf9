// Package council provides distributed task dispatch for multi-model AI
// councils over Redis.
//
// A producer hands subtasks to a shared queue and waits, with a bounded
// timeout, for each one's response. Workers claim subtasks, run them against
// the model the subtask names, and publish responses on per-subtask result
// lists. A worker that dies mid-task leaves its claim behind in a private
// processing list, where a recovery pass finds it and returns it to the
// queue once the worker's heartbeat has expired.
//
// # Packages
//
// The module is organized around a small set of packages:
//
//   - types: Subtask, Response and HealthStatus values shared by both sides
//   - queue: key layout, wire codec and the Redis-backed broker client
//   - producer: the dispatch agent that submits subtasks and awaits responses
//   - worker: the claim, process, publish and commit loop with heartbeat and recovery
//   - llm: the Model and Executor abstractions workers run subtasks against
//   - registry: optional etcd service registry for worker and model discovery
//   - component: council.yaml and COUNCIL_* environment configuration
//   - resilience: retry and circuit breaking around external calls
//   - health: reusable health checks for brokers, workers and registries
//
// # Quick Start
//
// Producer side:
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	agent := producer.NewAgent(client, producer.Options{Timeout: 2 * time.Minute})
//	resp := agent.Execute(ctx, types.NewSubtask("s1", "summarise the findings"), llm.NewModel("m1"))
//	if !resp.Success {
//	    log.Printf("subtask failed: %s", resp.ErrorMessage)
//	}
//
// Worker side:
//
//	exec := llm.ExecutorFunc(func(ctx context.Context, st types.Subtask, m llm.Model) (types.Response, error) {
//	    return types.Response{Content: "OK", Success: true}, nil
//	})
//	if err := worker.Run(exec, []llm.Model{llm.NewModel("m1")}, worker.Options{}); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// The producer never returns an error for a failed subtask; it returns a
// failure Response instead. Errors returned elsewhere are *CouncilError
// values that wrap one of the sentinel errors in this package, so callers
// branch with errors.Is:
//
//	if errors.Is(err, council.ErrTimeout) {
//	    // no worker answered in time
//	}
package council
