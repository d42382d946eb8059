package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatGeneration ErrorCategory = "generation" // Agent produced no usable text
	ErrCatContent    ErrorCategory = "content"    // Answer rejected by content checker
	ErrCatLink       ErrorCategory = "link"       // No valid supporting links
	ErrCatExhausted  ErrorCategory = "exhausted"  // Retry budget spent
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatRateLimit  ErrorCategory = "rate_limit" // Agent service rate limited
	ErrCatAuth       ErrorCategory = "auth"       // Authentication failure
	ErrCatNetwork    ErrorCategory = "network"    // Network connectivity
	ErrCatState      ErrorCategory = "state"      // State corruption/conflict
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
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

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrGeneration creates a generation error. An empty generation is an
// unrecoverable agent failure for the question, so it is not retryable.
func ErrGeneration(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatGeneration,
		Code:      CodeEmptyGeneration,
		Message:   message,
		Retryable: false,
	}
}

// ErrExhausted creates an error for a spent retry budget.
func ErrExhausted(attempts int) *DomainError {
	return &DomainError{
		Category:  ErrCatExhausted,
		Code:      CodeRetriesExhausted,
		Message:   fmt.Sprintf("failed to generate acceptable answer after %d attempts", attempts),
		Retryable: false,
		Details: map[string]interface{}{
			"attempts": attempts,
		},
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrAuth creates an authentication error. Never retried: a bad key stays bad.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatAuth,
		Code:      "AUTH_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrNetwork creates a network connectivity error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK_ERROR",
		Message:   message,
		Retryable: true,
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

// IsFatalForBatch reports whether an error should abort a whole batch run
// instead of skipping the current row. Auth and configuration problems
// affect every subsequent row equally; transient per-call errors do not.
func IsFatalForBatch(err error) bool {
	switch GetCategory(err) {
	case ErrCatAuth, ErrCatValidation, ErrCatState:
		return true
	default:
		return false
	}
}

// Predefined error codes
const (
	CodeEmptyGeneration  = "EMPTY_GENERATION"
	CodeRetriesExhausted = "RETRIES_EXHAUSTED"
	CodeQuestionTooShort = "QUESTION_TOO_SHORT"
	CodeCharLimitRange   = "CHAR_LIMIT_OUT_OF_RANGE"
	CodeMaxRetriesRange  = "MAX_RETRIES_OUT_OF_RANGE"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeInvalidMapping   = "INVALID_COLUMN_MAPPING"
	CodeParseFailed      = "PARSE_FAILED"
	CodeAgentUnavailable = "AGENT_UNAVAILABLE"
	CodeSheetNotFound    = "SHEET_NOT_FOUND"
)
