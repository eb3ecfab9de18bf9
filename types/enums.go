package types

import (
	"fmt"
	"strings"
)

// Priority orders subtasks for the caller. The queue itself does not schedule by it.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// String returns the wire value of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ParsePriority parses a case-insensitive priority string.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// RiskLevel grades how risky a subtask or its result is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// String returns the wire value of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known risk levels.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// ParseRiskLevel parses a case-insensitive risk level string.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return r, nil
}

// TaskType classifies the kind of work a subtask asks for.
// The zero value means the type is not set.
type TaskType string

const (
	TaskTypeReasoning       TaskType = "reasoning"
	TaskTypeResearch        TaskType = "research"
	TaskTypeCodeGeneration  TaskType = "code_generation"
	TaskTypeDebugging       TaskType = "debugging"
	TaskTypeCreativeOutput  TaskType = "creative_output"
	TaskTypeImageGeneration TaskType = "image_generation"
	TaskTypeFactChecking    TaskType = "fact_checking"
	TaskTypeVerification    TaskType = "verification"
)

// String returns the wire value of the task type.
func (t TaskType) String() string {
	return string(t)
}

// IsValid reports whether t is one of the known task types.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeReasoning, TaskTypeResearch, TaskTypeCodeGeneration, TaskTypeDebugging,
		TaskTypeCreativeOutput, TaskTypeImageGeneration, TaskTypeFactChecking, TaskTypeVerification:
		return true
	}
	return false
}

// ParseTaskType parses a case-insensitive task type string.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown task type %q", s)
	}
	return t, nil
}
