package resilience

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// captureSink records every event it receives.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Report(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureSink) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	e := NewEvent(FailureTimeout, "mq_execution_agent", "no response").ForSubtask("s1", "m1")

	assert.Equal(t, FailureTimeout, e.Kind)
	assert.Equal(t, "timeout", e.Kind.String())
	assert.Equal(t, SeverityHigh, e.Severity)
	assert.Equal(t, "s1", e.SubtaskID)
	assert.Equal(t, "m1", e.ModelID)
	assert.False(t, e.OccurredAt.Before(before))
}

func TestMultiSink(t *testing.T) {
	a, b := &captureSink{}, &captureSink{}
	var calls int
	m := MultiSink{a, nil, b, SinkFunc(func(Event) { calls++ })}

	m.Report(NewEvent(FailureAPI, "c", "x"))

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
	assert.Equal(t, 1, calls)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Report(NewEvent(FailureAPI, "mq_execution_agent", "broker down").ForSubtask("s9", "m1"))

	out := buf.String()
	assert.Contains(t, out, `"kind":"api_failure"`)
	assert.Contains(t, out, `"subtask_id":"s9"`)
	assert.Contains(t, out, "broker down")
}

func TestMeterSink(t *testing.T) {
	sink, err := NewMeterSink(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		sink.Report(NewEvent(FailureTimeout, "c", "x"))
	})
}

// countingMeter hands out a counter that totals every Add.
type countingMeter struct {
	noop.Meter
	counter *countingCounter
}

func (m countingMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return m.counter, nil
}

type countingCounter struct {
	noop.Int64Counter
	mu    sync.Mutex
	total int64
}

func (c *countingCounter) Add(_ context.Context, incr int64, _ ...metric.AddOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += incr
}

func (c *countingCounter) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func TestDispatcher_LogAndMeterSinks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	counter := &countingCounter{}
	meterSink, err := NewMeterSink(countingMeter{counter: counter})
	require.NoError(t, err)

	d := NewDispatcher(MultiSink{NewLogSink(logger), meterSink}, DispatcherOptions{Logger: logger})
	d.Report(NewEvent(FailureTimeout, "mq_execution_agent", "no response").ForSubtask("s1", "m1"))
	d.Report(NewEvent(FailureAPI, "mq_execution_agent", "broker down"))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int64(2), counter.Total())
	assert.Contains(t, buf.String(), "no response")
	assert.Contains(t, buf.String(), "broker down")
}

func TestNopSink(t *testing.T) {
	assert.NotPanics(t, func() { NopSink{}.Report(Event{}) })
}

func TestDispatcher_Delivers(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, DispatcherOptions{})

	for i := 0; i < 10; i++ {
		d.Report(NewEvent(FailureAPI, "c", "x"))
	}

	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sink.Events(), 10)
	assert.Equal(t, int64(10), d.Delivered())
	assert.Zero(t, d.Dropped())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := SinkFunc(func(Event) { <-release })
	d := NewDispatcher(blocking, DispatcherOptions{QueueSize: 2})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Report(NewEvent(FailureTimeout, "c", "x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a full queue")
	}

	assert.Greater(t, d.Dropped(), int64(0))

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int64(20), d.Dropped()+d.Delivered())
}

func TestDispatcher_RecoversSinkPanic(t *testing.T) {
	var n int
	var mu sync.Mutex
	sink := SinkFunc(func(Event) {
		mu.Lock()
		n++
		first := n == 1
		mu.Unlock()
		if first {
			panic("sink exploded")
		}
	})
	d := NewDispatcher(sink, DispatcherOptions{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})

	d.Report(NewEvent(FailureAPI, "c", "1"))
	d.Report(NewEvent(FailureAPI, "c", "2"))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int64(1), d.Panics())
	assert.Equal(t, int64(1), d.Delivered())
}

func TestDispatcher_ReportAfterClose(t *testing.T) {
	d := NewDispatcher(&captureSink{}, DispatcherOptions{})
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() { d.Report(NewEvent(FailureAPI, "c", "late")) })
	assert.Equal(t, int64(1), d.Dropped())
}

func TestDispatcher_CloseTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	d := NewDispatcher(SinkFunc(func(Event) { <-release }), DispatcherOptions{})
	d.Report(NewEvent(FailureAPI, "c", "stuck"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, d.Close(ctx))
}
