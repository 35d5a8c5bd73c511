package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation   ErrorCategory = "validation"   // Invalid input or config
	ErrCatExecution    ErrorCategory = "execution"    // Agent runtime failure
	ErrCatTimeout      ErrorCategory = "timeout"      // Task exceeded its deadline
	ErrCatState        ErrorCategory = "state"        // State corruption/conflict
	ErrCatCollaborator ErrorCategory = "collaborator" // Execution or queue backend unreachable
	ErrCatNotFound     ErrorCategory = "not_found"    // Resource not found
	ErrCatInternal     ErrorCategory = "internal"     // Unexpected internal error
)

// DomainError represents a structured error from the domain layer. The
// wrapped cause is kept for errors.Is/As chains but excluded from
// serialization; snapshots carry the rendered message instead.
type DomainError struct {
	Category  ErrorCategory          `json:"category"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Cause     error                  `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Predefined error codes.
const (
	CodeAgentFailed            = "AGENT_FAILED"
	CodeAgentTimeout           = "AGENT_TIMEOUT"
	CodeMaxRetriesExceeded     = "MAX_RETRIES_EXCEEDED"
	CodeCollaboratorDown       = "COLLABORATOR_UNAVAILABLE"
	CodeEmptyBatch             = "EMPTY_BATCH"
	CodeRunCancelled           = "RUN_CANCELLED"
	CodeInvalidState           = "INVALID_STATE"
	CodeInvalidConfig          = "INVALID_CONFIG"
	CodeJobNotFound            = "JOB_NOT_FOUND"
	CodeAgentUnknown           = "AGENT_UNKNOWN"
	CodeEmptyTarget            = "EMPTY_TARGET"
	CodeConcurrentJobsExceeded = "CONCURRENT_JOBS_EXCEEDED"
)

// ErrAgentExecution creates a recoverable agent failure.
func ErrAgentExecution(agent string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      CodeAgentFailed,
		Message:   fmt.Sprintf("agent %s failed", agent),
		Retryable: true,
		Cause:     cause,
	}
}

// ErrAgentTimeout creates a recoverable deadline error. Partial output, if
// any, stays on the task's trace.
func ErrAgentTimeout(agent string, timeout string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeAgentTimeout,
		Message:   fmt.Sprintf("agent %s exceeded deadline %s", agent, timeout),
		Retryable: true,
	}
}

// ErrMaxRetriesExceeded creates the terminal retry-exhaustion error.
func ErrMaxRetriesExceeded(retries int, successRate float64) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      CodeMaxRetriesExceeded,
		Message:   fmt.Sprintf("success rate %.2f below threshold after %d retries", successRate, retries),
		Retryable: false,
		Details: map[string]interface{}{
			"retries":      retries,
			"success_rate": successRate,
		},
	}
}

// ErrCollaboratorUnavailable creates the terminal backend-unreachable error.
func ErrCollaboratorUnavailable(name string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatCollaborator,
		Code:      CodeCollaboratorDown,
		Message:   fmt.Sprintf("collaborator %s unavailable", name),
		Retryable: false,
		Cause:     cause,
	}
}

// ErrRunCancelled creates the terminal cancellation error.
func ErrRunCancelled(reason string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      CodeRunCancelled,
		Message:   fmt.Sprintf("run cancelled: %s", reason),
		Retryable: false,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      CodeJobNotFound,
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}
