package llm

import (
	"errors"
	"fmt"

	"github.com/zero-day-ai/council/types"
)

// Role is the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat completion prompt.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is the provider call a CompletionExecutor makes for one
// subtask.
type CompletionRequest struct {
	// SubtaskID correlates the provider call with the dispatched subtask.
	SubtaskID string

	// Messages is the prompt, system turn first when present.
	Messages []Message

	// Temperature controls randomness in the output (0.0 to 2.0).
	Temperature *float64

	// MaxTokens limits the maximum number of tokens to generate.
	MaxTokens *int

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64

	// Stop contains sequences that will stop generation when encountered.
	Stop []string
}

// CompletionResponse is what a provider returned for a CompletionRequest.
type CompletionResponse struct {
	Content string

	// FinishReason indicates why the generation stopped.
	// Common values: "stop", "length", "content_filter"
	FinishReason string

	Usage TokenUsage
}

// TokenUsage counts the tokens a provider billed for one request.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// CompletionOption adjusts a CompletionRequest.
type CompletionOption func(*CompletionRequest)

// WithTemperature sets the temperature for the completion request.
func WithTemperature(t float64) CompletionOption {
	return func(r *CompletionRequest) {
		r.Temperature = &t
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) CompletionOption {
	return func(r *CompletionRequest) {
		r.MaxTokens = &n
	}
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(p float64) CompletionOption {
	return func(r *CompletionRequest) {
		r.TopP = &p
	}
}

// WithStopSequences sets sequences that will stop generation.
func WithStopSequences(stops ...string) CompletionOption {
	return func(r *CompletionRequest) {
		r.Stop = stops
	}
}

// taskTemperatures are the defaults for task types that need a particular
// sampling regime. Other types leave the provider default in place.
var taskTemperatures = map[types.TaskType]float64{
	types.TaskTypeFactChecking:   0,
	types.TaskTypeVerification:   0,
	types.TaskTypeDebugging:      0.1,
	types.TaskTypeCodeGeneration: 0.2,
	types.TaskTypeCreativeOutput: 0.9,
}

// NewSubtaskRequest builds the prompt for a subtask: an optional system turn
// followed by the subtask content. The task type picks a default temperature;
// opts are applied afterwards and win.
func NewSubtaskRequest(subtask types.Subtask, systemPrompt string, opts ...CompletionOption) *CompletionRequest {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: subtask.Content})

	req := &CompletionRequest{SubtaskID: subtask.ID, Messages: messages}
	if t, ok := taskTemperatures[subtask.TaskType]; ok {
		WithTemperature(t)(req)
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// Validate rejects requests no provider would accept.
func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("completion request has no messages")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("message %d (%s) is empty", i, m.Role)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *r.Temperature)
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top_p %v out of range [0, 1]", *r.TopP)
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", *r.MaxTokens)
	}
	return nil
}

// IsComplete returns true if generation finished normally (not truncated).
func (r *CompletionResponse) IsComplete() bool {
	return r.FinishReason == "" || r.FinishReason == "stop"
}

// Total returns TotalTokens, or the sum of input and output when the
// provider left it unset.
func (u TokenUsage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}
