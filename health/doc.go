// Package health provides reusable health check functions for council
// producers and workers.
//
// Every check returns a types.HealthStatus and never fails the caller, so
// checks can be combined freely and exposed on a status endpoint or a CLI.
//
// # Health Check Functions
//
//   - BrokerCheck: Verify the Redis broker answers a ping
//   - BacklogCheck: Report degraded when the main queue grows past a threshold
//   - WorkerCheck: Verify a worker's heartbeat and flag dead workers holding tasks
//   - RegistryCheck: Verify the service registry and count registered workers
//   - NetworkCheck: Verify TCP connectivity to a host:port
//   - Combine: Aggregate multiple health checks into a single status
//
// # Usage Example
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	overall := health.Combine(
//	    health.BrokerCheck(ctx, client),
//	    health.BacklogCheck(ctx, client, 1000),
//	    health.WorkerCheck(ctx, client, "worker-1"),
//	)
//
//	if overall.IsUnhealthy() {
//	    log.Printf("Health check failed: %s", overall.Message)
//	    log.Printf("Details: %+v", overall.Details)
//	}
//
// # Health Status Priority
//
// When combining health checks with Combine(), the result follows this priority:
//
//   - Unhealthy: If any check is unhealthy, the combined result is unhealthy
//   - Degraded: If any check is degraded (and none unhealthy), the result is degraded
//   - Healthy: If all checks are healthy, the result is healthy
//
// # Context and Timeouts
//
// Every check accepts a context for timeout and cancellation control.
// If nil is passed, or the context has no deadline, a default 5-second
// timeout is used.
package health
