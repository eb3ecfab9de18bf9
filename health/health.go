package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/zero-day-ai/council/queue"
	"github.com/zero-day-ai/council/registry"
	"github.com/zero-day-ai/council/types"
)

// defaultCheckTimeout bounds a check whose context carries no deadline.
const defaultCheckTimeout = 5 * time.Second

// Pinger is anything that can verify its connection, such as queue.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerCheck verifies that the broker answers a ping.
//
// Example:
//
//	status := health.BrokerCheck(ctx, client)
//	if status.IsUnhealthy() {
//	    log.Println("broker unreachable:", status.Details["error"])
//	}
func BrokerCheck(ctx context.Context, p Pinger) types.HealthStatus {
	if p == nil {
		return types.NewUnhealthyStatus("broker client is not configured", nil)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return types.NewUnhealthyStatus("broker is unreachable", map[string]any{
			"error": err.Error(),
		})
	}

	return types.NewHealthyStatus("broker is reachable").
		WithDetail("latency_ms", time.Since(start).Milliseconds())
}

// QueueLengther reports the number of tasks waiting on the main queue.
type QueueLengther interface {
	QueueLength(ctx context.Context) (int64, error)
}

// BacklogCheck reports degraded when more than threshold tasks are waiting,
// which usually means too few workers are running. A threshold of zero or
// less disables the limit.
func BacklogCheck(ctx context.Context, q QueueLengther, threshold int64) types.HealthStatus {
	if q == nil {
		return types.NewUnhealthyStatus("broker client is not configured", nil)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	n, err := q.QueueLength(ctx)
	if err != nil {
		return types.NewUnhealthyStatus("failed to read queue length", map[string]any{
			"error": err.Error(),
		})
	}

	if threshold > 0 && n > threshold {
		return types.NewDegradedStatus(
			fmt.Sprintf("%d tasks waiting exceeds threshold %d", n, threshold),
			map[string]any{"queue_length": n, "threshold": threshold},
		)
	}

	return types.NewHealthyStatus(fmt.Sprintf("%d tasks waiting", n)).
		WithDetail("queue_length", n)
}

// WorkerCheck reports whether a worker's heartbeat is live. A dead worker that
// still holds claimed tasks is unhealthy; one that holds none is degraded.
func WorkerCheck(ctx context.Context, client queue.Client, workerID string) types.HealthStatus {
	if client == nil {
		return types.NewUnhealthyStatus("broker client is not configured", nil)
	}
	if workerID == "" {
		return types.NewUnhealthyStatus("worker id cannot be empty", nil)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	alive, err := client.IsAlive(ctx, workerID)
	if err != nil {
		return types.NewUnhealthyStatus("failed to read worker heartbeat", map[string]any{
			"worker_id": workerID,
			"error":     err.Error(),
		})
	}
	if alive {
		return types.NewHealthyStatus(fmt.Sprintf("worker %s is alive", workerID))
	}

	pending, err := client.Pending(ctx, workerID)
	if err != nil || len(pending) == 0 {
		return types.NewDegradedStatus(
			fmt.Sprintf("worker %s has no heartbeat", workerID),
			map[string]any{"worker_id": workerID},
		)
	}

	return types.NewUnhealthyStatus(
		fmt.Sprintf("worker %s is dead with %d claimed tasks awaiting recovery", workerID, len(pending)),
		map[string]any{"worker_id": workerID, "pending": len(pending)},
	)
}

// RegistryCheck verifies the registry is reachable and reports how many
// workers are registered. No registered workers is degraded.
func RegistryCheck(ctx context.Context, reg registry.Registry) types.HealthStatus {
	if reg == nil {
		return types.NewDegradedStatus("registry is not configured", nil)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	workers, err := reg.DiscoverAll(ctx, registry.KindWorker)
	if err != nil {
		return types.NewUnhealthyStatus("registry is unreachable", map[string]any{
			"error": err.Error(),
		})
	}
	if len(workers) == 0 {
		return types.NewDegradedStatus("no workers registered", map[string]any{"workers": 0})
	}

	return types.NewHealthyStatus(fmt.Sprintf("%d workers registered", len(workers))).
		WithDetail("workers", len(workers))
}

// NetworkCheck verifies TCP connectivity to a host and port.
// It uses the provided context for timeout and cancellation control.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	status := health.NetworkCheck(ctx, "redis.internal", 6379)
//	if status.IsUnhealthy() {
//	    log.Println("Cannot reach redis.internal:6379")
//	}
func NetworkCheck(ctx context.Context, host string, port int) types.HealthStatus {
	if host == "" {
		return types.NewUnhealthyStatus("host cannot be empty", nil)
	}

	if port <= 0 || port > 65535 {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("invalid port number: %d", port),
			map[string]any{"port": port},
		)
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{
				"host":  host,
				"port":  port,
				"error": err.Error(),
			},
		)
	}

	// Close connection immediately
	conn.Close()

	return types.NewHealthyStatus(
		fmt.Sprintf("successfully connected to %s", address),
	)
}

// Combine aggregates multiple health checks into a single status.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
//
// Example:
//
//	status := health.Combine(
//	    health.BrokerCheck(ctx, client),
//	    health.BacklogCheck(ctx, client, 1000),
//	)
//	if status.IsUnhealthy() {
//	    log.Fatal("council broker is unreachable")
//	}
func Combine(checks ...types.HealthStatus) types.HealthStatus {
	if len(checks) == 0 {
		return types.NewHealthyStatus("no checks provided")
	}

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		switch check.Status {
		case types.StatusUnhealthy:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			unhealthyChecks = append(unhealthyChecks, msg)
		case types.StatusDegraded:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			degradedChecks = append(degradedChecks, msg)
		case types.StatusHealthy:
			healthyCount++
		}
	}

	// Return unhealthy if any check is unhealthy
	if len(unhealthyChecks) > 0 {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	// Return degraded if any check is degraded
	if len(degradedChecks) > 0 {
		return types.NewDegradedStatus(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	// All checks are healthy
	return types.NewHealthyStatus(
		fmt.Sprintf("all %d check(s) passed", len(checks)),
	)
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, defaultCheckTimeout)
}
