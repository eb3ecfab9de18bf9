package llm

import (
	"context"
	"errors"
	"testing"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/types"
)

type fakeCompleter struct {
	resp   *CompletionResponse
	err    error
	gotID  string
	gotReq *CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, modelID string, req *CompletionRequest) (*CompletionResponse, error) {
	f.gotID = modelID
	f.gotReq = req
	return f.resp, f.err
}

func TestExecutorFunc(t *testing.T) {
	var called bool
	exec := ExecutorFunc(func(_ context.Context, s types.Subtask, m Model) (types.Response, error) {
		called = true
		return types.Response{SubtaskID: s.ID, ModelUsed: m.ID(), Success: true}, nil
	})

	resp, err := exec.Execute(context.Background(), types.NewSubtask("s1", "c"), NewModel("m1"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !called || resp.SubtaskID != "s1" || resp.ModelUsed != "m1" {
		t.Errorf("Execute() = %+v", resp)
	}
}

func TestCompletionExecutor(t *testing.T) {
	completer := &fakeCompleter{resp: &CompletionResponse{
		Content:      "4",
		FinishReason: "stop",
		Usage:        TokenUsage{InputTokens: 8, OutputTokens: 2},
	}}
	exec := &CompletionExecutor{
		Completer:    completer,
		SystemPrompt: "answer tersely",
		Options:      []CompletionOption{WithMaxTokens(16)},
		CostPerToken: 0.5,
	}

	s := types.NewSubtask("s1", "What is 2+2?")
	s.RiskLevel = types.RiskMedium

	resp, err := exec.Execute(context.Background(), s, NewModel("gpt-4"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if completer.gotID != "gpt-4" {
		t.Errorf("model id = %q", completer.gotID)
	}
	if len(completer.gotReq.Messages) != 2 || completer.gotReq.Messages[1].Content != "What is 2+2?" {
		t.Errorf("messages = %+v", completer.gotReq.Messages)
	}
	if completer.gotReq.MaxTokens == nil || *completer.gotReq.MaxTokens != 16 {
		t.Errorf("MaxTokens not applied")
	}

	if !resp.Success || resp.Content != "4" || resp.SubtaskID != "s1" {
		t.Errorf("Execute() = %+v", resp)
	}
	sa := resp.SelfAssessment
	if sa.TokenUsage != 10 || sa.EstimatedCost != 5 {
		t.Errorf("usage = %d tokens, cost %v", sa.TokenUsage, sa.EstimatedCost)
	}
	if sa.ConfidenceScore != CompleteConfidence || sa.RiskLevel != types.RiskMedium {
		t.Errorf("self assessment = %+v", sa)
	}
}

func TestCompletionExecutor_Truncated(t *testing.T) {
	exec := &CompletionExecutor{Completer: &fakeCompleter{resp: &CompletionResponse{Content: "par", FinishReason: "length"}}}

	resp, err := exec.Execute(context.Background(), types.NewSubtask("s1", "c"), NewModel("m"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.SelfAssessment.ConfidenceScore != TruncatedConfidence {
		t.Errorf("confidence = %v", resp.SelfAssessment.ConfidenceScore)
	}
	if len(resp.SelfAssessment.Assumptions) != 1 {
		t.Errorf("assumptions = %v", resp.SelfAssessment.Assumptions)
	}
}

func TestCompletionExecutor_Errors(t *testing.T) {
	boom := errors.New("rate limited")
	exec := &CompletionExecutor{Completer: &fakeCompleter{err: boom}}

	if _, err := exec.Execute(context.Background(), types.NewSubtask("s1", "c"), NewModel("m")); !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want %v", err, boom)
	}

	completer := &fakeCompleter{resp: &CompletionResponse{Content: "x"}}
	_, err := (&CompletionExecutor{Completer: completer}).Execute(context.Background(), types.NewSubtask("s1", ""), NewModel("m"))
	if !errors.Is(err, council.ErrInvalidSubtask) {
		t.Errorf("Execute() with empty content error = %v, want ErrInvalidSubtask", err)
	}
	if completer.gotReq != nil {
		t.Error("invalid request reached the provider")
	}

	if _, err := (&CompletionExecutor{}).Execute(context.Background(), types.NewSubtask("s1", "c"), NewModel("m")); err == nil {
		t.Error("Execute() without completer returned nil error")
	}
}
