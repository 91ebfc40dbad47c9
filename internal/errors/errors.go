package errors

import (
	stderrors "errors"
	"fmt"
)

// AuditError is the structured error type for fsaudit.
// It provides rich context for error handling, logging, and user presentation.
type AuditError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AuditError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AuditError sentinels.
func (e *AuditError) Is(target error) bool {
	if t, ok := target.(*AuditError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AuditError) WithDetail(key, value string) *AuditError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *AuditError) WithSuggestion(suggestion string) *AuditError {
	e.Suggestion = suggestion
	return e
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrJobAlreadyRunning = New(ErrCodeJobAlreadyRunning, "a crawl is already in progress", nil)
	ErrInvalidPath       = New(ErrCodeInvalidPath, "invalid path", nil)
	ErrNotFound          = New(ErrCodeFileNotFound, "not found", nil)
	ErrNotADirectory     = New(ErrCodeNotADirectory, "not a directory", nil)
	ErrStore             = New(ErrCodeStoreFailed, "store failure", nil)
	ErrInvalidStatus     = New(ErrCodeInvalidStatus, "invalid run status", nil)
)

// New creates a new AuditError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AuditError {
	return &AuditError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AuditError from an existing error.
// The error's message becomes the AuditError message.
func Wrap(code string, err error) *AuditError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AuditError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *AuditError {
	return New(ErrCodeFileNotFound, message, cause)
}

// StoreError creates an error for a failed metadata store operation.
func StoreError(op string, cause error) *AuditError {
	msg := fmt.Sprintf("store %s failed", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return New(ErrCodeStoreFailed, msg, cause).WithDetail("op", op)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AuditError {
	return New(ErrCodeInvalidInput, message, cause)
}

// ContentionError creates an error for a start request rejected because a job is active.
func ContentionError(message string) *AuditError {
	return New(ErrCodeJobAlreadyRunning, message, nil).
		WithSuggestion("Wait for the current scan to finish before starting another")
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AuditError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain holds an AuditError with Retryable flag set.
func IsRetryable(err error) bool {
	var ae *AuditError
	if stderrors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var ae *AuditError
	if stderrors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AuditError.
// Returns empty string if not an AuditError.
func GetCode(err error) string {
	var ae *AuditError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AuditError.
// Returns empty string if not an AuditError.
func GetCategory(err error) Category {
	var ae *AuditError
	if stderrors.As(err, &ae) {
		return ae.Category
	}
	return ""
}

// Message returns the human-readable message without the code prefix.
// Used where the message is surfaced verbatim, e.g. job status text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *AuditError
	if stderrors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
