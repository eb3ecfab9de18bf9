package llm

import (
	"context"
	"errors"
	"time"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/types"
)

// Executor runs a subtask against a model and reports the outcome.
// Implementations should honour ctx for cancellation; the worker never
// cancels an in-flight execution on shutdown.
type Executor interface {
	Execute(ctx context.Context, subtask types.Subtask, model Model) (types.Response, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, subtask types.Subtask, model Model) (types.Response, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, subtask types.Subtask, model Model) (types.Response, error) {
	return f(ctx, subtask, model)
}

// Completer is a provider client that answers chat completion requests.
type Completer interface {
	Complete(ctx context.Context, modelID string, req *CompletionRequest) (*CompletionResponse, error)
}

// Confidence reported by CompletionExecutor. A completion cut short by the
// token limit is reported at the lower value.
const (
	CompleteConfidence  = 0.7
	TruncatedConfidence = 0.35
)

// CompletionExecutor executes a subtask as a single chat completion.
type CompletionExecutor struct {
	// Completer performs the provider call. Required.
	Completer Completer

	// SystemPrompt is sent ahead of the subtask content when set.
	SystemPrompt string

	// Options are applied to every request after the task-type defaults.
	Options []CompletionOption

	// CostPerToken prices total token usage in the self-assessment.
	CostPerToken float64
}

// Execute implements Executor.
func (e *CompletionExecutor) Execute(ctx context.Context, subtask types.Subtask, model Model) (types.Response, error) {
	if e.Completer == nil {
		return types.Response{}, errors.New("completion executor has no completer")
	}

	req := NewSubtaskRequest(subtask, e.SystemPrompt, e.Options...)
	if err := req.Validate(); err != nil {
		return types.Response{}, council.NewValidationError("CompletionExecutor.Execute", err)
	}

	start := time.Now()
	resp, err := e.Completer.Complete(ctx, ModelID(model), req)
	if err != nil {
		return types.Response{}, err
	}
	elapsed := time.Since(start)

	confidence := CompleteConfidence
	assumptions := []string{}
	if !resp.IsComplete() {
		confidence = TruncatedConfidence
		assumptions = append(assumptions, "completion stopped early: "+resp.FinishReason)
	}

	risk := subtask.RiskLevel
	if risk == "" {
		risk = types.RiskLow
	}

	tokens := resp.Usage.Total()
	return types.Response{
		SubtaskID: subtask.ID,
		ModelUsed: ModelID(model),
		Content:   resp.Content,
		Success:   true,
		Metadata:  map[string]any{"finish_reason": resp.FinishReason},
		SelfAssessment: types.SelfAssessment{
			ConfidenceScore: confidence,
			Assumptions:     assumptions,
			RiskLevel:       risk,
			EstimatedCost:   float64(tokens) * e.CostPerToken,
			TokenUsage:      tokens,
			ExecutionTime:   elapsed.Seconds(),
			ModelUsed:       ModelID(model),
		},
	}, nil
}
