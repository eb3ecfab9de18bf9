package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/zero-day-ai/council/queue"
)

// Recover returns the in-flight tasks of dead workers to the main queue.
//
// A worker is dead when its processing list exists but its heartbeat key does
// not. Each task is moved with a single atomic broker operation, so concurrent
// passes by several workers never duplicate or lose a task. Lists owned by
// live workers are not touched.
//
// Broker errors are logged and end the pass early; the report covers the work
// done so far. Running the pass again is always safe.
func Recover(ctx context.Context, client queue.Client, logger *slog.Logger) queue.RecoveryReport {
	if logger == nil {
		logger = slog.Default()
	}
	report := queue.RecoveryReport{Recovered: make(map[string]int)}

	logger.Info("checking for stale tasks from dead workers")

	workers, err := client.ProcessingWorkers(ctx)
	if err != nil {
		logger.Error("failed to recover stale tasks", "stage", "enumerate", "error", err)
		return report
	}
	report.Scanned = len(workers)

	for _, id := range workers {
		alive, err := client.IsAlive(ctx, id)
		if err != nil {
			logger.Error("failed to recover stale tasks", "stage", "liveness", "dead_worker_id", id, "error", err)
			return report
		}
		if alive {
			report.Skipped = append(report.Skipped, id)
			continue
		}

		for {
			moved, err := client.Requeue(ctx, id)
			if err != nil {
				logger.Error("failed to recover stale tasks", "stage", "move", "dead_worker_id", id, "error", err)
				return report
			}
			if !moved {
				break
			}
			report.Recovered[id]++
		}

		if n := report.Recovered[id]; n > 0 {
			logger.Info("recovered tasks from dead worker", "dead_worker_id", id, "count", n)
		}
	}

	return report
}

// recoverPeriodically repeats recovery every interval until ctx is done.
func (w *Worker) recoverPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.recover(ctx)
		}
	}
}

func (w *Worker) recover(ctx context.Context) queue.RecoveryReport {
	report := Recover(ctx, w.client, w.logger)
	if n := report.Total(); n > 0 {
		w.metrics.recovered.Add(ctx, int64(n))
	}
	return report
}
