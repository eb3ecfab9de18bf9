package types

import "time"

// SelfAssessment is the executing model's own report on a result.
type SelfAssessment struct {
	ConfidenceScore float64
	Assumptions     []string
	RiskLevel       RiskLevel
	EstimatedCost   float64

	// TokenUsage is never negative.
	TokenUsage int

	// ExecutionTime is wall-clock seconds.
	ExecutionTime float64

	ModelUsed string
}

// Response is the result of one attempt at a subtask.
//
// A Response with Success=false always carries an ErrorMessage and its
// confidence score is treated as 0.
type Response struct {
	SubtaskID      string
	ModelUsed      string
	Content        string
	Success        bool
	ErrorMessage   string
	Metadata       map[string]any
	SelfAssessment SelfAssessment
}

// NewFailureResponse builds the failure shape used at every dispatch boundary:
// empty content, success=false, confidence 0 and CRITICAL risk.
func NewFailureResponse(subtaskID, modelID, message string, elapsed time.Duration) Response {
	if message == "" {
		message = "unknown failure"
	}
	return Response{
		SubtaskID:    subtaskID,
		ModelUsed:    modelID,
		Success:      false,
		ErrorMessage: message,
		Metadata:     make(map[string]any),
		SelfAssessment: SelfAssessment{
			ConfidenceScore: 0,
			Assumptions:     []string{},
			RiskLevel:       RiskCritical,
			ModelUsed:       modelID,
			ExecutionTime:   elapsed.Seconds(),
		},
	}
}

// Failed reports whether the response is a failure.
func (r Response) Failed() bool {
	return !r.Success
}

// Confidence returns the confidence score, which is 0 for failures.
func (r Response) Confidence() float64 {
	if !r.Success {
		return 0
	}
	return r.SelfAssessment.ConfidenceScore
}

// ExecutionDuration converts the self-assessed execution time to a duration.
func (r Response) ExecutionDuration() time.Duration {
	return time.Duration(r.SelfAssessment.ExecutionTime * float64(time.Second))
}
