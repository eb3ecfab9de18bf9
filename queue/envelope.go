package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/trace"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/types"
)

// Fallback identifiers used when a response payload omits them.
const (
	UnknownSubtask = "unknown_subtask"
	UnknownModel   = "unknown_model"
)

// TaskEnvelope is the wire form of a subtask addressed to a model.
type TaskEnvelope struct {
	SubtaskID           string         `json:"subtask_id"`
	ParentTaskID        string         `json:"parent_task_id"`
	Content             string         `json:"content"`
	TaskType            *string        `json:"task_type"`
	Priority            string         `json:"priority"`
	RiskLevel           string         `json:"risk_level"`
	AccuracyRequirement float64        `json:"accuracy_requirement"`
	EstimatedCost       float64        `json:"estimated_cost"`
	Metadata            map[string]any `json:"metadata"`
	ModelID             string         `json:"model_id"`

	// TraceID and SpanID carry the producer's span so worker spans join its trace.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ResponseEnvelope is the wire form of a worker's response.
type ResponseEnvelope struct {
	SubtaskID      string                 `json:"subtask_id"`
	ModelUsed      string                 `json:"model_used"`
	Content        string                 `json:"content"`
	Success        bool                   `json:"success"`
	ErrorMessage   *string                `json:"error_message"`
	Metadata       map[string]any         `json:"metadata"`
	SelfAssessment SelfAssessmentEnvelope `json:"self_assessment"`
}

// SelfAssessmentEnvelope is the wire form of types.SelfAssessment.
type SelfAssessmentEnvelope struct {
	ConfidenceScore float64  `json:"confidence_score"`
	Assumptions     []string `json:"assumptions"`
	RiskLevel       string   `json:"risk_level"`
	EstimatedCost   float64  `json:"estimated_cost"`
	TokenUsage      int      `json:"token_usage"`
	ExecutionTime   float64  `json:"execution_time"`
	ModelUsed       string   `json:"model_used"`
}

// NewTaskEnvelope builds the wire form of s addressed to modelID.
func NewTaskEnvelope(s types.Subtask, modelID string) *TaskEnvelope {
	env := &TaskEnvelope{
		SubtaskID:           s.ID,
		ParentTaskID:        s.ParentTaskID,
		Content:             s.Content,
		Priority:            string(types.PriorityMedium),
		RiskLevel:           string(types.RiskLow),
		AccuracyRequirement: finite(s.AccuracyRequirement),
		EstimatedCost:       finite(s.EstimatedCost),
		Metadata:            s.Metadata,
		ModelID:             modelID,
	}
	if s.TaskType != "" {
		tt := s.TaskType.String()
		env.TaskType = &tt
	}
	if s.Priority != "" {
		env.Priority = s.Priority.String()
	}
	if s.RiskLevel != "" {
		env.RiskLevel = s.RiskLevel.String()
	}
	if env.Metadata == nil {
		env.Metadata = map[string]any{}
	}
	return env
}

// WithSpanContext records sc on the envelope when it is valid.
func (e *TaskEnvelope) WithSpanContext(sc trace.SpanContext) *TaskEnvelope {
	if sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}

// SpanContext returns the remote parent span recorded by the producer, if any.
func (e *TaskEnvelope) SpanContext() (trace.SpanContext, bool) {
	if e.TraceID == "" || e.SpanID == "" {
		return trace.SpanContext{}, false
	}
	tid, err := trace.TraceIDFromHex(e.TraceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	sid, err := trace.SpanIDFromHex(e.SpanID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}

// Encode serializes the envelope. It never fails: metadata values that cannot
// be marshalled are replaced by their %v text.
func (e *TaskEnvelope) Encode() string {
	if data, err := json.Marshal(e); err == nil {
		return string(data)
	}

	clean := *e
	clean.Metadata = sanitizeMap(e.Metadata)
	if data, err := json.Marshal(&clean); err == nil {
		return string(data)
	}

	clean.Metadata = map[string]any{}
	data, _ := json.Marshal(&clean)
	return string(data)
}

// Subtask converts the envelope back into a subtask.
func (e *TaskEnvelope) Subtask() types.Subtask {
	st := types.Subtask{
		ID:                  e.SubtaskID,
		ParentTaskID:        e.ParentTaskID,
		Content:             e.Content,
		Priority:            types.PriorityMedium,
		RiskLevel:           types.RiskLow,
		AccuracyRequirement: e.AccuracyRequirement,
		EstimatedCost:       e.EstimatedCost,
		Metadata:            e.Metadata,
	}
	if e.TaskType != nil {
		if tt, err := types.ParseTaskType(*e.TaskType); err == nil {
			st.TaskType = tt
		}
	}
	if p, err := types.ParsePriority(e.Priority); err == nil {
		st.Priority = p
	}
	if r, err := types.ParseRiskLevel(e.RiskLevel); err == nil {
		st.RiskLevel = r
	}
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}
	return st
}

// EncodeTask serializes a subtask and its target model id.
func EncodeTask(s types.Subtask, modelID string) string {
	return NewTaskEnvelope(s, modelID).Encode()
}

// ParseTaskEnvelope decodes a task payload. Missing or mistyped fields take
// their defaults; only a payload that is not a JSON object is rejected.
func ParseTaskEnvelope(payload string) (*TaskEnvelope, error) {
	f, err := parseObject(payload)
	if err != nil {
		return nil, council.NewDecodeError("ParseTaskEnvelope", err)
	}

	env := &TaskEnvelope{
		SubtaskID:           f.str("subtask_id", ""),
		ParentTaskID:        f.str("parent_task_id", ""),
		Content:             f.str("content", ""),
		Priority:            f.str("priority", string(types.PriorityMedium)),
		RiskLevel:           f.str("risk_level", string(types.RiskLow)),
		AccuracyRequirement: f.float("accuracy_requirement", types.DefaultAccuracyRequirement),
		EstimatedCost:       f.float("estimated_cost", 0),
		Metadata:            f.object("metadata"),
		ModelID:             f.str("model_id", ""),
		TraceID:             f.str("trace_id", ""),
		SpanID:              f.str("span_id", ""),
	}
	if tt := f.str("task_type", ""); tt != "" {
		env.TaskType = &tt
	}
	return env, nil
}

// DecodeTask decodes a task payload into the subtask and target model id.
func DecodeTask(payload string) (types.Subtask, string, error) {
	env, err := ParseTaskEnvelope(payload)
	if err != nil {
		return types.Subtask{}, "", err
	}
	return env.Subtask(), env.ModelID, nil
}

// NewResponseEnvelope builds the wire form of r.
func NewResponseEnvelope(r types.Response) *ResponseEnvelope {
	sa := r.SelfAssessment
	env := &ResponseEnvelope{
		SubtaskID: r.SubtaskID,
		ModelUsed: r.ModelUsed,
		Content:   r.Content,
		Success:   r.Success,
		Metadata:  r.Metadata,
		SelfAssessment: SelfAssessmentEnvelope{
			ConfidenceScore: finite(sa.ConfidenceScore),
			Assumptions:     sa.Assumptions,
			RiskLevel:       string(sa.RiskLevel),
			EstimatedCost:   finite(sa.EstimatedCost),
			TokenUsage:      max(sa.TokenUsage, 0),
			ExecutionTime:   finite(sa.ExecutionTime),
			ModelUsed:       sa.ModelUsed,
		},
	}
	if r.ErrorMessage != "" || !r.Success {
		msg := r.ErrorMessage
		env.ErrorMessage = &msg
	}
	if !r.Success {
		env.SelfAssessment.ConfidenceScore = 0
	}
	if env.SelfAssessment.RiskLevel == "" {
		env.SelfAssessment.RiskLevel = string(types.RiskLow)
	}
	if env.SelfAssessment.Assumptions == nil {
		env.SelfAssessment.Assumptions = []string{}
	}
	if env.Metadata == nil {
		env.Metadata = map[string]any{}
	}
	return env
}

// Encode serializes the envelope. Like TaskEnvelope.Encode it never fails.
func (e *ResponseEnvelope) Encode() string {
	if data, err := json.Marshal(e); err == nil {
		return string(data)
	}

	clean := *e
	clean.Metadata = sanitizeMap(e.Metadata)
	if data, err := json.Marshal(&clean); err == nil {
		return string(data)
	}

	clean.Metadata = map[string]any{}
	data, _ := json.Marshal(&clean)
	return string(data)
}

// EncodeResponse serializes a response.
func EncodeResponse(r types.Response) string {
	return NewResponseEnvelope(r).Encode()
}

// DecodeResponse decodes a response payload. Missing fields take their
// defaults, an unknown risk level becomes LOW, and a failure without a
// message is given a generic one.
func DecodeResponse(payload string) (types.Response, error) {
	f, err := parseObject(payload)
	if err != nil {
		return types.Response{}, council.NewDecodeError("DecodeResponse", err)
	}

	sa := f.nested("self_assessment")
	risk, err := types.ParseRiskLevel(sa.str("risk_level", string(types.RiskLow)))
	if err != nil {
		risk = types.RiskLow
	}

	resp := types.Response{
		SubtaskID:    f.str("subtask_id", ""),
		ModelUsed:    f.str("model_used", ""),
		Content:      f.str("content", ""),
		Success:      f.boolean("success", true),
		ErrorMessage: f.str("error_message", ""),
		Metadata:     f.object("metadata"),
		SelfAssessment: types.SelfAssessment{
			ConfidenceScore: sa.float("confidence_score", 0),
			Assumptions:     sa.strings("assumptions"),
			RiskLevel:       risk,
			EstimatedCost:   sa.float("estimated_cost", 0),
			TokenUsage:      max(int(sa.float("token_usage", 0)), 0),
			ExecutionTime:   sa.float("execution_time", 0),
			ModelUsed:       sa.str("model_used", ""),
		},
	}
	if resp.SubtaskID == "" {
		resp.SubtaskID = UnknownSubtask
	}
	if resp.ModelUsed == "" {
		resp.ModelUsed = UnknownModel
	}
	if !resp.Success {
		resp.SelfAssessment.ConfidenceScore = 0
		if resp.ErrorMessage == "" {
			resp.ErrorMessage = "worker reported failure without an error message"
		}
	}
	return resp, nil
}

// fields is a decoded JSON object whose members are read leniently.
type fields map[string]json.RawMessage

func parseObject(payload string) (fields, error) {
	var f fields
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	if f == nil {
		return nil, errors.New("payload is null")
	}
	return f, nil
}

func (f fields) raw(key string) (json.RawMessage, bool) {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func (f fields) str(key, def string) string {
	raw, ok := f.raw(key)
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return def
	}
	return s
}

func (f fields) float(key string, def float64) float64 {
	raw, ok := f.raw(key)
	if !ok {
		return def
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

func (f fields) boolean(key string, def bool) bool {
	raw, ok := f.raw(key)
	if !ok {
		return def
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

func (f fields) object(key string) map[string]any {
	out := map[string]any{}
	if raw, ok := f.raw(key); ok {
		_ = json.Unmarshal(raw, &out)
		if out == nil {
			out = map[string]any{}
		}
	}
	return out
}

func (f fields) nested(key string) fields {
	out := fields{}
	if raw, ok := f.raw(key); ok {
		_ = json.Unmarshal(raw, &out)
		if out == nil {
			out = fields{}
		}
	}
	return out
}

func (f fields) strings(key string) []string {
	out := []string{}
	raw, ok := f.raw(key)
	if !ok {
		return out
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		} else if item != nil {
			out = append(out, fmt.Sprint(item))
		}
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// sanitizeMap replaces values json cannot encode with their %v text.
func sanitizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprintf("%v", v)
			continue
		}
		out[k] = v
	}
	return out
}
