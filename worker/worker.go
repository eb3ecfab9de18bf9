package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/llm"
	"github.com/zero-day-ai/council/queue"
	"github.com/zero-day-ai/council/registry"
	"github.com/zero-day-ai/council/types"
)

// claimErrorBackoff is the pause after a failed claim before polling again.
const claimErrorBackoff = time.Second

// ModelResolver turns a wire model id into a model. *llm.Resolver implements it.
type ModelResolver interface {
	Resolve(ctx context.Context, id string) (llm.Model, error)
}

// Worker consumes subtasks from the main queue and publishes their responses.
//
// A Worker runs exactly one task at a time. Run it in as many processes (or
// goroutines, each with its own Worker) as needed to scale out.
type Worker struct {
	id       string
	client   queue.Client
	executor llm.Executor
	resolver ModelResolver
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics
	usage    *llm.DefaultUsageTracker
	state    stateBox

	// unpublished holds claims whose response could not be published or
	// committed. Only the loop goroutine touches it.
	unpublished []*pendingResult

	healthMu sync.Mutex
	health   *healthServer
}

// pendingResult is a processed claim still waiting to be published or committed.
type pendingResult struct {
	claim     *queue.Claim
	subtaskID string
	payload   string
	published bool
}

// New creates a worker on a connected broker client.
func New(client queue.Client, executor llm.Executor, resolver ModelResolver, opts Options) *Worker {
	requestedTTL := opts.HeartbeatTTL
	opts = opts.withDefaults()
	if opts.ID == "" {
		opts.ID = generateWorkerID()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("council/worker")
	}

	w := &Worker{
		id:       opts.ID,
		client:   client,
		executor: executor,
		resolver: resolver,
		opts:     opts,
		logger:   opts.Logger.With("worker_id", opts.ID),
		tracer:   opts.Tracer,
		metrics:  newMetrics(opts.Meter),
		usage:    llm.NewUsageTracker(),
	}
	if requestedTTL > 0 && requestedTTL != opts.HeartbeatTTL {
		w.logger.Warn("heartbeat ttl must exceed the interval, raising it",
			"requested_ttl", requestedTTL.String(),
			"interval", opts.HeartbeatInterval.String(),
			"ttl", opts.HeartbeatTTL.String(),
		)
	}
	w.state.store(StateStarting)
	return w
}

// ID returns the worker identity used in its processing and heartbeat keys.
func (w *Worker) ID() string {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return w.state.load()
}

// Usage returns per-model totals for the responses this worker produced.
func (w *Worker) Usage() llm.UsageTracker {
	return w.usage
}

// HealthAddr returns the health server's bound address, or "" when disabled.
func (w *Worker) HealthAddr() string {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()
	if w.health == nil {
		return ""
	}
	return w.health.Addr()
}

func (w *Worker) setState(s State) {
	w.state.store(s)
}

// Run processes tasks until ctx is cancelled.
//
// On start it verifies the broker, begins heartbeating and runs one recovery
// pass before claiming anything. Cancellation stops the loop between tasks:
// a task already claimed is processed and published before Run returns. The
// heartbeat is deleted only after the loop has stopped.
//
// Run returns an error only when the worker cannot start.
func (w *Worker) Run(ctx context.Context) error {
	w.setState(StateStarting)

	if err := w.client.Ping(ctx); err != nil {
		w.setState(StateStopped)
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	if w.opts.HealthAddr != "" {
		hs, err := startHealthServer(w.opts.HealthAddr, w.logger)
		if err != nil {
			w.setState(StateStopped)
			return err
		}
		w.healthMu.Lock()
		w.health = hs
		w.healthMu.Unlock()
		defer func() {
			hs.stop()
			w.healthMu.Lock()
			w.health = nil
			w.healthMu.Unlock()
		}()
	}

	w.logger.Info("worker started",
		"queue", w.client.Keys().Tasks(),
		"processing", w.client.Keys().Processing(w.id),
		"models", w.opts.Models,
	)
	for _, m := range w.opts.Models {
		w.logger.Info("worker loaded model", "model_id", m)
	}

	// The heartbeat outlives ctx so that a task in flight at shutdown stays
	// owned by a live worker until it is published.
	hbCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))
	hbDone := make(chan struct{})
	hb := &heartbeat{
		client:   w.client,
		workerID: w.id,
		interval: w.opts.HeartbeatInterval,
		ttl:      w.opts.HeartbeatTTL,
		logger:   w.logger,
		onBeat:   w.onHeartbeat,
	}
	go func() {
		defer close(hbDone)
		hb.run(hbCtx)
	}()
	defer func() {
		stopHeartbeat()
		<-hbDone
		w.setState(StateStopped)
		w.logger.Info("worker stopped")
	}()

	w.setState(StateRecovering)
	w.recover(ctx)

	info := w.register(ctx)
	if info != nil {
		defer w.deregister(*info)
	}

	var bg sync.WaitGroup
	if w.opts.RecoveryInterval > 0 {
		bg.Add(1)
		go func() {
			defer bg.Done()
			w.recoverPeriodically(ctx, w.opts.RecoveryInterval)
		}()
	}

	w.loop(ctx)

	w.setState(StateShuttingDown)
	w.setHealth(false)
	w.logger.Info("worker shutting down", "unpublished", len(w.unpublished))
	bg.Wait()
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		w.retryUnpublished(ctx)

		w.setState(StateIdle)
		w.logger.Debug("waiting for next task")

		claim, err := w.client.Claim(ctx, w.id, w.opts.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to claim task", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(claimErrorBackoff):
			}
			continue
		}
		if claim == nil {
			continue
		}

		w.metrics.claims.Add(ctx, 1)
		// Shutdown must not abandon a claimed task mid-flight.
		w.handle(context.WithoutCancel(ctx), claim)
	}
}

// handle takes one claim through processing, publishing and commit.
func (w *Worker) handle(ctx context.Context, claim *queue.Claim) {
	w.setState(StateClaimed)

	env, err := queue.ParseTaskEnvelope(claim.Payload)
	if err == nil && env.SubtaskID == "" {
		err = council.NewDecodeError("Worker.handle", council.ErrInvalidSubtask)
	}
	if err != nil {
		w.deadLetter(ctx, claim, err)
		return
	}

	if sc, ok := env.SpanContext(); ok {
		ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	ctx, span := w.tracer.Start(ctx, "council.worker.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("council.subtask_id", env.SubtaskID),
			attribute.String("council.model_id", env.ModelID),
			attribute.String("council.worker_id", w.id),
		),
	)
	defer span.End()

	logger := w.logger.With("subtask_id", env.SubtaskID, "model_id", env.ModelID)
	logger.Info("worker processing subtask")

	w.setState(StateProcessing)
	resp := w.process(ctx, env)
	w.usage.Record(resp)

	span.SetAttributes(attribute.Bool("council.success", resp.Success))
	if !resp.Success {
		span.SetStatus(codes.Error, resp.ErrorMessage)
	}

	w.setState(StatePublishing)
	pending := &pendingResult{
		claim:     claim,
		subtaskID: env.SubtaskID,
		payload:   queue.EncodeResponse(resp),
	}
	if err := w.publish(ctx, pending); err != nil {
		w.setState(StatePublishFailed)
		span.RecordError(err)
		w.metrics.publishFailures.Add(ctx, 1)
		logger.Error("task processing failed to publish, leaving in processing list",
			"error", err,
			"published", pending.published,
		)
		w.unpublished = append(w.unpublished, pending)
		return
	}

	w.metrics.recordCompleted(ctx, resp.ModelUsed, resp.Success, claim.Age().Seconds())
	logger.Info("worker completed subtask",
		"success", resp.Success,
		"duration", claim.Age().String(),
	)
}

// process resolves the model and runs the executor. Every fault, including a
// panic, becomes a failure response.
func (w *Worker) process(ctx context.Context, env *queue.TaskEnvelope) (resp types.Response) {
	start := time.Now()
	subtask := env.Subtask()
	modelID := env.ModelID

	defer func() {
		if r := recover(); r != nil {
			err := council.NewExecutionError("Worker.process", fmt.Errorf("panic: %v", r))
			resp = w.failure(ctx, subtask.ID, modelID, err, start)
		}
	}()

	model, err := w.resolver.Resolve(ctx, modelID)
	if err != nil {
		return w.failure(ctx, subtask.ID, modelID, err, start)
	}

	resp, err = w.executor.Execute(ctx, subtask, model)
	if err != nil {
		return w.failure(ctx, subtask.ID, modelID, council.NewExecutionError("Worker.process", err), start)
	}

	return w.normalize(resp, subtask.ID, llm.ModelID(model), start)
}

// normalize fills in what the executor left out so the response can be
// correlated, and so a failure always carries a message and zero confidence.
func (w *Worker) normalize(resp types.Response, subtaskID, modelID string, start time.Time) types.Response {
	if resp.SubtaskID == "" {
		resp.SubtaskID = subtaskID
	}
	if resp.ModelUsed == "" {
		resp.ModelUsed = modelID
	}
	if resp.SelfAssessment.ModelUsed == "" {
		resp.SelfAssessment.ModelUsed = resp.ModelUsed
	}
	if resp.SelfAssessment.ExecutionTime == 0 {
		resp.SelfAssessment.ExecutionTime = time.Since(start).Seconds()
	}
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	if _, ok := resp.Metadata["worker_id"]; !ok {
		resp.Metadata["worker_id"] = w.id
	}
	if !resp.Success {
		if resp.ErrorMessage == "" {
			resp.ErrorMessage = "executor reported failure without an error message"
		}
		resp.SelfAssessment.ConfidenceScore = 0
	}
	return resp
}

func (w *Worker) failure(ctx context.Context, subtaskID, modelID string, err error, start time.Time) types.Response {
	msg := failureMessage(err, modelID)
	w.logger.ErrorContext(ctx, "worker failed processing subtask",
		"subtask_id", subtaskID,
		"model_id", modelID,
		"kind", council.KindOf(err),
		"error", err,
	)
	resp := types.NewFailureResponse(subtaskID, modelID, msg, time.Since(start))
	resp.Metadata["worker_id"] = w.id
	resp.Metadata["error_kind"] = council.KindOf(err)
	return resp
}

// failureMessage renders the message a producer sees for err.
func failureMessage(err error, modelID string) string {
	if errors.Is(err, council.ErrModelNotFound) {
		return fmt.Sprintf("model %s not found in worker registry", modelID)
	}
	var ce *council.CouncilError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err.Error()
	}
	return err.Error()
}

// publish pushes the response and commits the claim. A response already
// published is not pushed again.
func (w *Worker) publish(ctx context.Context, p *pendingResult) error {
	if !p.published {
		if err := w.client.PublishResult(ctx, p.subtaskID, p.payload, w.opts.ResultTTL); err != nil {
			return err
		}
		p.published = true
	}
	if err := w.client.Commit(ctx, p.claim); err != nil {
		return err
	}
	return nil
}

// retryUnpublished makes another attempt at every claim whose publish or
// commit failed while this worker kept running.
func (w *Worker) retryUnpublished(ctx context.Context) {
	if len(w.unpublished) == 0 {
		return
	}
	remaining := w.unpublished[:0]
	for _, p := range w.unpublished {
		if err := w.publish(ctx, p); err != nil {
			remaining = append(remaining, p)
			continue
		}
		w.logger.Info("published retained result", "subtask_id", p.subtaskID)
	}
	for i := len(remaining); i < len(w.unpublished); i++ {
		w.unpublished[i] = nil
	}
	w.unpublished = remaining
}

func (w *Worker) deadLetter(ctx context.Context, claim *queue.Claim, cause error) {
	w.logger.Error("undecodable task moved to dead-letter list",
		"error", cause,
		"dead_letter", w.client.Keys().DeadLetter(),
	)
	if err := w.client.DeadLetter(ctx, claim); err != nil {
		w.logger.Error("failed to dead-letter task, leaving in processing list", "error", err)
		return
	}
	w.metrics.deadLettered.Add(ctx, 1)
}

func (w *Worker) onHeartbeat(err error) {
	w.setHealth(err == nil && w.State() != StateShuttingDown && w.State() != StateStopped)
}

func (w *Worker) setHealth(serving bool) {
	w.healthMu.Lock()
	defer w.healthMu.Unlock()
	if w.health != nil {
		w.health.setServing(serving)
	}
}

// register announces the worker in the registry, if one is configured.
func (w *Worker) register(ctx context.Context) *registry.ServiceInfo {
	if w.opts.Registry == nil {
		return nil
	}
	info := registry.WorkerService(w.id, w.opts.Version, w.opts.Endpoint,
		w.client.Keys().Namespace, w.opts.Models)
	if err := w.opts.Registry.Register(ctx, info); err != nil {
		w.logger.Warn("failed to register worker", "error", err)
		return nil
	}
	w.logger.Info("worker registered", "service", info.Name)
	return &info
}

func (w *Worker) deregister(info registry.ServiceInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()
	if err := w.opts.Registry.Deregister(ctx, info); err != nil {
		w.logger.Warn("failed to deregister worker", "error", err)
	}
}

// generateWorkerID creates a unique identifier for this worker instance.
// Uses hostname + PID + UUID for uniqueness.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	pid := os.Getpid()

	// Add UUID suffix for additional uniqueness
	id := uuid.New().String()[:8]

	return fmt.Sprintf("%s-%d-%s", hostname, pid, id)
}
