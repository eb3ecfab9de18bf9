package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize bounds the events a Dispatcher buffers.
const DefaultQueueSize = 100

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// QueueSize bounds the buffer. Default: DefaultQueueSize
	QueueSize int

	// Logger receives drop and panic reports. Default: slog.Default()
	Logger *slog.Logger
}

// Dispatcher delivers events to a sink from a background goroutine so
// Report never blocks the caller. When the buffer is full the event is
// dropped and counted.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger
	queue  chan Event

	dropped   atomic.Int64
	delivered atomic.Int64
	panics    atomic.Int64

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher delivering to sink.
func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Dispatcher{
		sink:   sink,
		logger: opts.Logger,
		queue:  make(chan Event, opts.QueueSize),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Report queues e for delivery. It never blocks; events reported after
// Close or while the buffer is full are dropped.
func (d *Dispatcher) Report(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}

	// Non-blocking send - drop if queue is full
	select {
	case d.queue <- e:
	default:
		if d.dropped.Add(1) == 1 {
			d.logger.Warn("failure event queue full, dropping events",
				"kind", e.Kind.String(),
				"subtask_id", e.SubtaskID,
			)
		}
	}
}

// Dropped returns the number of events that were never delivered.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Delivered returns the number of events handed to the sink.
func (d *Dispatcher) Delivered() int64 {
	return d.delivered.Load()
}

// Close stops accepting events and waits for the buffer to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for failure events to drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("failure sink panicked", "panic", fmt.Sprint(r), "kind", e.Kind.String())
		}
	}()

	d.sink.Report(e)
	d.delivered.Add(1)
}

// Panics returns the number of sink panics recovered.
func (d *Dispatcher) Panics() int64 {
	return d.panics.Load()
}
