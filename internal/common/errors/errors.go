// Package errors provides the standardized error taxonomy of the analysis
// engine. Every analytical failure is reported with enough structure
// (operation, offending field, reason) for the caller to render a message.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeIncompleteProfile    ErrorCode = "INCOMPLETE_PROFILE"
	ErrCodeIncompleteRuleSet    ErrorCode = "INCOMPLETE_RULE_SET"
	ErrCodeRuleSetNotFound      ErrorCode = "RULESET_NOT_FOUND"
	ErrCodeAnalysisNotFound     ErrorCode = "ANALYSIS_NOT_FOUND"
	ErrCodeBackendUnavailable   ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeBackendTimeout       ErrorCode = "BACKEND_TIMEOUT"
	ErrCodeCacheError           ErrorCode = "CACHE_ERROR"
	ErrCodeCorpusQueryFailed    ErrorCode = "CORPUS_QUERY_FAILED"
	ErrCodeStoreWriteFailed     ErrorCode = "STORE_WRITE_FAILED"
	ErrCodeStoreReadFailed      ErrorCode = "STORE_READ_FAILED"
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Operation string                 `json:"operation,omitempty"`
	Field     string                 `json:"field,omitempty"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithOperation tags the error with the operation it failed in.
func (e *StandardError) WithOperation(op string) *StandardError {
	e.Operation = op
	return e
}

// ==========================
// Error Constructors
// ==========================

// NewInvalidInputError creates a non-retryable input rejection. Field names
// the offending input field.
func NewInvalidInputError(field, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Field:     field,
		Message:   "Input rejected before analysis",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIncompleteProfileError creates a non-retryable profile error for fields
// that are absolutely required to produce any answer.
func NewIncompleteProfileError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncompleteProfile,
		Field:     field,
		Message:   "Organization profile is missing a required field",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIncompleteRuleSetError creates a non-retryable rule-set definition error.
func NewIncompleteRuleSetError(ruleSetID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncompleteRuleSet,
		Message:   "Compliance rule set failed validation",
		Details:   fmt.Sprintf("ruleSetId: %s, %s", ruleSetID, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleSetNotFoundError creates a non-retryable unknown rule set error.
func NewRuleSetNotFoundError(ruleSetID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleSetNotFound,
		Field:     "ruleSetId",
		Message:   "Compliance rule set not found",
		Details:   fmt.Sprintf("ruleSetId: %s", ruleSetID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisNotFoundError is returned when guidance composition finds no
// stored analysis for the grant.
func NewAnalysisNotFoundError(grantID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisNotFound,
		Field:     "grantId",
		Message:   "No stored requirement analysis for grant",
		Details:   fmt.Sprintf("grantId: %s", grantID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendUnavailableError creates a retryable text-backend error. Partial
// extraction output must be discarded by the caller, never returned.
func NewBackendUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendUnavailable,
		Message:   "Text-understanding backend unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendTimeoutError creates a retryable backend timeout error.
func NewBackendTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendTimeout,
		Message:   "Text-understanding backend timeout",
		Details:   "call exceeded the configured timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheError creates a soft cache failure. Callers fall back to direct
// computation instead of failing the request.
func NewCacheError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheError,
		Message:   "Result cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCorpusQueryFailedError creates a retryable corpus read error.
func NewCorpusQueryFailedError(ref string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCorpusQueryFailed,
		Field:     "corpusReference",
		Message:   "Historical corpus query failed",
		Details:   fmt.Sprintf("corpusReference: %s, error: %s", ref, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreWriteFailedError creates a retryable persistence error.
func NewStoreWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreWriteFailed,
		Message:   "Failed to persist analysis result",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreReadFailedError creates a retryable store read error.
func NewStoreReadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreReadFailed,
		Message:   "Failed to read stored analysis result",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedOperationError creates a non-retryable dispatch error.
func NewUnsupportedOperationError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedOperation,
		Operation: operation,
		Message:   "Unknown analysis operation",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Utility Functions
// ==========================

// Normalize ensures any error is represented as a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// GetRetryCount returns the bounded retry budget per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeBackendUnavailable,
		ErrCodeCorpusQueryFailed,
		ErrCodeStoreWriteFailed,
		ErrCodeStoreReadFailed:
		return 3

	case ErrCodeBackendTimeout,
		ErrCodeCacheError:
		return 2

	default:
		return 0 // input/definition errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
