package types

import (
	"fmt"
	"math"
)

// DefaultAccuracyRequirement is applied when a subtask does not state one.
const DefaultAccuracyRequirement = 0.8

// Subtask is one unit of work dispatched to exactly one worker at a time.
// ID is the join key for the result channel and must not change once enqueued.
type Subtask struct {
	// ID is globally unique and assigned by the caller.
	ID string

	// ParentTaskID links the subtask to the task it was decomposed from. May be empty.
	ParentTaskID string

	// Content is the text payload to execute.
	Content string

	// TaskType is optional; the zero value means unset.
	TaskType TaskType

	Priority  Priority
	RiskLevel RiskLevel

	// AccuracyRequirement is in [0,1].
	AccuracyRequirement float64

	// EstimatedCost is non-negative.
	EstimatedCost float64

	Metadata map[string]any
}

// NewSubtask creates a subtask with the documented defaults applied.
func NewSubtask(id, content string) Subtask {
	return Subtask{
		ID:                  id,
		Content:             content,
		Priority:            PriorityMedium,
		RiskLevel:           RiskLow,
		AccuracyRequirement: DefaultAccuracyRequirement,
		Metadata:            make(map[string]any),
	}
}

// Validate checks the fields a worker relies on.
func (s Subtask) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("subtask id is required")
	}
	if math.IsNaN(s.AccuracyRequirement) || s.AccuracyRequirement < 0 || s.AccuracyRequirement > 1 {
		return fmt.Errorf("accuracy requirement must be in [0,1], got %v", s.AccuracyRequirement)
	}
	if math.IsNaN(s.EstimatedCost) || s.EstimatedCost < 0 {
		return fmt.Errorf("estimated cost must be non-negative, got %v", s.EstimatedCost)
	}
	if s.TaskType != "" && !s.TaskType.IsValid() {
		return fmt.Errorf("unknown task type %q", s.TaskType)
	}
	return nil
}
