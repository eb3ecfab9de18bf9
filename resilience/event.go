package resilience

import "time"

// FailureKind categorizes a dispatch failure.
type FailureKind string

const (
	// FailureTimeout means no worker answered within the wait window.
	FailureTimeout FailureKind = "timeout"

	// FailureAPI covers every other dispatch fault: broker errors,
	// malformed responses, invalid subtasks.
	FailureAPI FailureKind = "api_failure"
)

// String returns the wire value of the kind.
func (k FailureKind) String() string {
	return string(k)
}

// Severity grades how urgently an event needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event describes one failed dispatch.
type Event struct {
	Kind      FailureKind
	Component string
	Message   string
	SubtaskID string
	ModelID   string
	Severity  Severity

	OccurredAt time.Time
}

// NewEvent builds an event stamped with the current time at HIGH severity.
func NewEvent(kind FailureKind, component, message string) Event {
	return Event{
		Kind:       kind,
		Component:  component,
		Message:    message,
		Severity:   SeverityHigh,
		OccurredAt: time.Now(),
	}
}

// ForSubtask returns a copy of e annotated with the subtask and model.
func (e Event) ForSubtask(subtaskID, modelID string) Event {
	e.SubtaskID = subtaskID
	e.ModelID = modelID
	return e
}
