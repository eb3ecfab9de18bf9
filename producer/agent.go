package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/llm"
	"github.com/zero-day-ai/council/queue"
	"github.com/zero-day-ai/council/resilience"
	"github.com/zero-day-ai/council/types"
)

// Defaults applied by NewAgent.
const (
	DefaultTimeout   = 120 * time.Second
	DefaultComponent = "mq_execution_agent"
)

// Options configures an Agent.
type Options struct {
	// Timeout bounds the wait for a response. Default: 120s
	// Redis blocks in whole seconds, so the wait is rounded up to the next
	// second and anything below one second waits a full second.
	Timeout time.Duration

	// Component names the agent in failure events. Default: "mq_execution_agent"
	Component string

	// Sink receives failure events. Default: resilience.NopSink
	Sink resilience.Sink

	// Logger for structured logging. Default: slog.Default()
	Logger *slog.Logger

	// Tracer records one span per dispatch. Default: no-op tracer
	Tracer trace.Tracer
}

// Agent enqueues subtasks and waits for their responses.
type Agent struct {
	client    queue.Client
	timeout   time.Duration
	component string
	sink      resilience.Sink
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewAgent creates a producer agent on client.
func NewAgent(client queue.Client, opts Options) *Agent {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Component == "" {
		opts.Component = DefaultComponent
	}
	if opts.Sink == nil {
		opts.Sink = resilience.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("council/producer")
	}

	return &Agent{
		client:    client,
		timeout:   opts.Timeout,
		component: opts.Component,
		sink:      opts.Sink,
		logger:    opts.Logger.With("component", opts.Component),
		tracer:    opts.Tracer,
	}
}

// Timeout returns the configured response wait.
func (a *Agent) Timeout() time.Duration {
	return a.timeout
}

// Execute dispatches subtask to model and returns the worker's response.
// It never panics and never returns an error: faults become failure responses.
func (a *Agent) Execute(ctx context.Context, subtask types.Subtask, model llm.Model) (resp types.Response) {
	start := time.Now()
	modelID := "unknown"

	ctx, span := a.tracer.Start(ctx, "council.producer.execute",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("council.subtask_id", subtask.ID)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := council.NewExecutionError("Agent.Execute", fmt.Errorf("panic: %v", r))
			resp = a.fail(ctx, span, subtask.ID, modelID, err, start)
		}
	}()

	modelID = llm.ModelID(model)
	span.SetAttributes(attribute.String("council.model_id", modelID))

	if subtask.ID == "" {
		err := council.NewValidationError("Agent.Execute",
			fmt.Errorf("%w: subtask id is required for its result to be retrievable", council.ErrInvalidSubtask))
		return a.fail(ctx, span, subtask.ID, modelID, err, start)
	}

	payload := queue.NewTaskEnvelope(subtask, modelID).WithSpanContext(span.SpanContext()).Encode()

	a.logger.InfoContext(ctx, "pushing subtask to queue", "subtask_id", subtask.ID, "model_id", modelID)
	if err := a.client.Enqueue(ctx, payload); err != nil {
		return a.fail(ctx, span, subtask.ID, modelID, err, start)
	}

	a.logger.DebugContext(ctx, "waiting for response",
		"subtask_id", subtask.ID,
		"result_key", a.client.Keys().Result(subtask.ID),
		"timeout", a.timeout.String(),
	)
	raw, err := a.client.AwaitResult(ctx, subtask.ID, a.timeout)
	if err != nil {
		if errors.Is(err, queue.ErrNoResult) {
			err = council.NewTimeoutError("Agent.Execute",
				fmt.Errorf("worker did not respond within %s", a.timeout))
		}
		return a.fail(ctx, span, subtask.ID, modelID, err, start)
	}

	resp, err = queue.DecodeResponse(raw)
	if err != nil {
		return a.fail(ctx, span, subtask.ID, modelID, err, start)
	}

	if resp.SelfAssessment.ExecutionTime == 0 {
		resp.SelfAssessment.ExecutionTime = time.Since(start).Seconds()
	}

	span.SetAttributes(attribute.Bool("council.success", resp.Success))
	a.logger.InfoContext(ctx, "received response",
		"subtask_id", subtask.ID,
		"model_id", resp.ModelUsed,
		"success", resp.Success,
		"elapsed", time.Since(start).String(),
	)
	return resp
}

// fail reports err and builds the failure response.
func (a *Agent) fail(ctx context.Context, span trace.Span, subtaskID, modelID string, err error, start time.Time) types.Response {
	kind := FailureKind(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("council.failure_kind", kind.String()))

	a.logger.ErrorContext(ctx, "queue execution failed",
		"subtask_id", subtaskID,
		"model_id", modelID,
		"kind", kind.String(),
		"error", err,
	)

	a.report(resilience.NewEvent(kind, a.component, err.Error()).ForSubtask(subtaskID, modelID))

	return types.NewFailureResponse(subtaskID, modelID,
		"queue execution failed: "+err.Error(), time.Since(start))
}

// report hands e to the sink, shielding the caller from sink panics.
func (a *Agent) report(e resilience.Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("failure sink panicked", "panic", fmt.Sprint(r))
		}
	}()
	a.sink.Report(e)
}

// FailureKind maps a dispatch error to the event kind reported for it.
func FailureKind(err error) resilience.FailureKind {
	if errors.Is(err, council.ErrTimeout) {
		return resilience.FailureTimeout
	}
	return resilience.FailureAPI
}

// FailureAdvice tells a caller how to treat a failed dispatch.
type FailureAdvice struct {
	ErrorType      string
	ErrorMessage   string
	RetrySuggested bool
}

// Advise classifies a dispatch error. Timeouts and broker faults are worth
// retrying; malformed payloads and invalid subtasks are not.
func Advise(err error) FailureAdvice {
	advice := FailureAdvice{ErrorType: "mq_error", RetrySuggested: true}
	if err == nil {
		return advice
	}
	advice.ErrorMessage = err.Error()
	switch council.KindOf(err) {
	case council.KindDecode, council.KindValidation:
		advice.RetrySuggested = false
	}
	return advice
}

// Close closes the underlying broker client.
func (a *Agent) Close() error {
	return a.client.Close()
}
