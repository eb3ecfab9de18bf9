package resilience

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sink receives failure events. Report must not block for long and must not
// panic; callers never see a sink's problems.
type Sink interface {
	Report(e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event)

// Report calls f.
func (f SinkFunc) Report(e Event) {
	f(e)
}

// NopSink discards every event.
type NopSink struct{}

// Report does nothing.
func (NopSink) Report(Event) {}

// LogSink writes each event as a structured warning.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Report logs e.
func (s *LogSink) Report(e Event) {
	s.logger.Warn("dispatch failure",
		"kind", e.Kind.String(),
		"component", e.Component,
		"subtask_id", e.SubtaskID,
		"model_id", e.ModelID,
		"severity", string(e.Severity),
		"message", e.Message,
	)
}

// MeterSink counts events on an OpenTelemetry counter named
// council.dispatch.failures.
type MeterSink struct {
	counter metric.Int64Counter
}

// NewMeterSink creates the counter on meter.
func NewMeterSink(meter metric.Meter) (*MeterSink, error) {
	counter, err := meter.Int64Counter("council.dispatch.failures",
		metric.WithDescription("Dispatch failures reported by producers"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &MeterSink{counter: counter}, nil
}

// Report increments the counter for e's kind and component.
func (s *MeterSink) Report(e Event) {
	s.counter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", e.Kind.String()),
		attribute.String("component", e.Component),
	))
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

// Report forwards e to each non-nil sink.
func (m MultiSink) Report(e Event) {
	for _, s := range m {
		if s != nil {
			s.Report(e)
		}
	}
}
