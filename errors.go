package council

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for the dispatch error taxonomy.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrTimeout indicates no response arrived within the wait window.
	ErrTimeout = errors.New("timed out waiting for response")

	// ErrDecode indicates a payload crossing the broker was not well-formed.
	ErrDecode = errors.New("malformed payload")

	// ErrBrokerUnavailable indicates a connectivity fault at a broker call.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrModelNotFound indicates the worker could not resolve the requested model id.
	ErrModelNotFound = errors.New("model not found")

	// ErrExecution indicates the external execution layer failed.
	ErrExecution = errors.New("execution failed")

	// ErrInvalidSubtask indicates a subtask that can never produce a retrievable result.
	ErrInvalidSubtask = errors.New("invalid subtask")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their type.
const (
	// KindTimeout represents a bounded wait that elapsed with nothing delivered.
	KindTimeout = "timeout"

	// KindDecode represents payloads that could not be decoded.
	KindDecode = "decode"

	// KindBroker represents broker connectivity faults.
	KindBroker = "broker_unavailable"

	// KindModelNotFound represents model resolution failures.
	KindModelNotFound = "model_not_found"

	// KindExecution represents failures raised by the execution layer.
	KindExecution = "execution"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"
)

// CouncilError is a structured error type that wraps underlying errors with
// the operation that failed and the category of error.
//
// CouncilError supports error unwrapping, making it compatible with
// errors.Is() and errors.As().
//
// Example usage:
//
//	err := &CouncilError{
//		Op:   "Worker.publish",
//		Kind: KindBroker,
//		Err:  redisErr,
//	}
type CouncilError struct {
	// Op is the operation that failed (e.g., "RedisClient.Claim", "Agent.Execute").
	Op string

	// Kind categorizes the error (e.g., KindTimeout, KindDecode).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional debugging information (optional).
	Context map[string]any
}

// Error implements the error interface.
func (e *CouncilError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("council: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("council: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("council: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *CouncilError) Unwrap() error {
	return e.Err
}

// Is matches on Kind (and Op when the target sets one), then on the
// sentinel for the kind, then on the wrapped error.
func (e *CouncilError) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*CouncilError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	if sentinel := sentinelFor(e.Kind); sentinel != nil && target == sentinel {
		return true
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with ctx merged into its context.
func (e *CouncilError) WithContext(ctx map[string]any) *CouncilError {
	newErr := *e
	merged := make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	newErr.Context = merged
	return &newErr
}

func sentinelFor(kind string) error {
	switch kind {
	case KindTimeout:
		return ErrTimeout
	case KindDecode:
		return ErrDecode
	case KindBroker:
		return ErrBrokerUnavailable
	case KindModelNotFound:
		return ErrModelNotFound
	case KindExecution:
		return ErrExecution
	case KindValidation:
		return ErrInvalidSubtask
	case KindConfiguration:
		return ErrInvalidConfig
	}
	return nil
}

// KindOf returns the Kind of the first CouncilError in err's chain, or "".
func KindOf(err error) string {
	var ce *CouncilError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// NewTimeoutError creates a new CouncilError with KindTimeout.
func NewTimeoutError(op string, err error) *CouncilError {
	return &CouncilError{Op: op, Kind: KindTimeout, Err: err}
}

// NewDecodeError creates a new CouncilError with KindDecode.
func NewDecodeError(op string, err error) *CouncilError {
	return &CouncilError{Op: op, Kind: KindDecode, Err: err}
}

// NewBrokerError creates a new CouncilError with KindBroker.
func NewBrokerError(op string, err error) *CouncilError {
	return &CouncilError{Op: op, Kind: KindBroker, Err: err}
}

// NewModelNotFoundError creates a new CouncilError with KindModelNotFound.
func NewModelNotFoundError(op string, err error) *CouncilError {
	return &CouncilError{Op: op, Kind: KindModelNotFound, Err: err}
}

// NewExecutionError creates a new CouncilError with KindExecution.
func NewExecutionError(op string, err error) *CouncilError {
	return &CouncilError{Op: op, Kind: KindExecution, Err: err}
}

// NewValidationError creates a new CouncilError with KindValidation.
func NewValidationError(op string, err error) *CouncilError {
	return &CouncilError{Op: op, Kind: KindValidation, Err: err}
}

// NewConfigurationError creates a new CouncilError with KindConfiguration.
func NewConfigurationError(op string, err error) *CouncilError {
	return &CouncilError{Op: op, Kind: KindConfiguration, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements.
//
// If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer council.CloseWithLog(client, logger, "redis client")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
