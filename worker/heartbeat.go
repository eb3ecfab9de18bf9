package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/zero-day-ai/council/queue"
)

// clearTimeout bounds the heartbeat deletion on shutdown.
const clearTimeout = 5 * time.Second

// heartbeat keeps a worker's liveness key fresh for as long as it runs.
type heartbeat struct {
	client   queue.Client
	workerID string
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger

	// onBeat observes every renewal attempt; nil error means the key was set.
	onBeat func(error)
}

// run sets the heartbeat immediately and then every interval until ctx is
// cancelled, then deletes the key so recovery does not wait out the TTL.
func (h *heartbeat) run(ctx context.Context) {
	defer h.clear()

	h.logger.Debug("heartbeat goroutine started",
		"interval", h.interval.String(),
		"ttl", h.ttl.String(),
	)

	h.beat(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("heartbeat goroutine stopped")
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *heartbeat) beat(ctx context.Context) {
	err := h.client.Heartbeat(ctx, h.workerID, h.ttl)
	if err != nil && ctx.Err() == nil {
		// A single miss is tolerated: the TTL spans several intervals.
		h.logger.Warn("heartbeat failed", "error", err)
	}
	if h.onBeat != nil {
		h.onBeat(err)
	}
}

// clear runs on a fresh context because the heartbeat's own is already done.
func (h *heartbeat) clear() {
	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()

	if err := h.client.ClearHeartbeat(ctx, h.workerID); err != nil {
		h.logger.Error("failed to delete heartbeat", "error", err)
		return
	}
	h.logger.Debug("heartbeat deleted")
}
