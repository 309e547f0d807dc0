package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeWorkflowNotFound  = "WORKFLOW_NOT_FOUND"
	ErrCodeStepFailed        = "STEP_FAILED"
	ErrCodeToolNotRegistered = "TOOL_NOT_REGISTERED"
	ErrCodeToolDisabled      = "TOOL_DISABLED"
	ErrCodeToolNotPermitted  = "TOOL_NOT_PERMITTED"
	ErrCodeUnsupportedEvent  = "UNSUPPORTED_EVENT"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeStore             = "STORE_ERROR"
)

// PropError is the structured error type for all PropAI operations.
type PropError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PropError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PropError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PropError.
func NewError(code, message string) *PropError {
	return &PropError{Code: code, Message: message}
}

// NewErrorf creates a new PropError with a formatted message.
func NewErrorf(code, format string, args ...any) *PropError {
	return &PropError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying cause.
func (e *PropError) WithCause(err error) *PropError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *PropError) WithDetails(details map[string]any) *PropError {
	e.Details = details
	return e
}

// IsCode reports whether err is (or wraps) a PropError with the given code.
func IsCode(err error, code string) bool {
	var perr *PropError
	if errors.As(err, &perr) {
		return perr.Code == code
	}
	return false
}
