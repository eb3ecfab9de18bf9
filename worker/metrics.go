package worker

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// metrics holds the worker's OpenTelemetry instruments.
type metrics struct {
	claims          metric.Int64Counter
	completed       metric.Int64Counter
	publishFailures metric.Int64Counter
	recovered       metric.Int64Counter
	deadLettered    metric.Int64Counter
	duration        metric.Float64Histogram
}

// newMetrics creates the instruments on meter. An instrument that cannot be
// created falls back to a no-op so metrics never stop the worker.
func newMetrics(meter metric.Meter) *metrics {
	fallback := noop.NewMeterProvider().Meter("council/worker")
	if meter == nil {
		meter = fallback
	}

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{task}"))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	m := &metrics{
		claims:          counter("council.worker.claims", "Tasks claimed from the main queue"),
		completed:       counter("council.worker.completed", "Tasks published and committed"),
		publishFailures: counter("council.worker.publish_failures", "Results that could not be published"),
		recovered:       counter("council.worker.recovered", "Stale tasks moved back to the main queue"),
		deadLettered:    counter("council.worker.dead_lettered", "Undecodable payloads moved to the dead-letter list"),
	}

	h, err := meter.Float64Histogram("council.worker.processing.duration",
		metric.WithDescription("Time from claim to publish"),
		metric.WithUnit("s"),
	)
	if err != nil {
		h, _ = fallback.Float64Histogram("council.worker.processing.duration")
	}
	m.duration = h

	return m
}

func (m *metrics) recordCompleted(ctx context.Context, modelID string, success bool, seconds float64) {
	opts := metric.WithAttributes(
		attribute.String("council.model_id", modelID),
		attribute.Bool("council.success", success),
	)
	m.completed.Add(ctx, 1, opts)
	m.duration.Record(ctx, seconds, opts)
}
