// Package core holds types shared across cdt packages.
package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a failure so the CLI can choose an exit code and
// a log level without inspecting messages.
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryUsage                           // Unknown command, bad arguments
	ErrCategoryConnection                      // Dial, handshake or socket failure
	ErrCategoryProtocol                        // Malformed or unexpected frames
	ErrCategoryBuild                           // Request could not be rendered
	ErrCategoryConfig                          // Invalid configuration file
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryUsage:
		return "usage"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryProtocol:
		return "protocol"
	case ErrCategoryBuild:
		return "build"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: unknown_command, dial_failed, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExecutionError by code, so a predefined error still
// matches after WithCause or WithMessage.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Usage errors
	ErrUnknownCommand = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "unknown_command",
		Message:  "unknown command",
	}
	ErrBadArguments = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "bad_arguments",
		Message:  "invalid arguments",
	}
	ErrInvalidDisplay = &ExecutionError{
		Category: ErrCategoryUsage,
		Code:     "invalid_display",
		Message:  "invalid display",
	}

	// Connection errors
	ErrDialFailed = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "dial_failed",
		Message:  "could not connect to DevTools endpoint",
	}
	ErrDisconnected = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "disconnected",
		Message:  "DevTools connection lost",
	}

	// Protocol errors
	ErrMalformedFrame = &ExecutionError{
		Category: ErrCategoryProtocol,
		Code:     "malformed_frame",
		Message:  "malformed frame",
	}
	ErrUnexpectedReply = &ExecutionError{
		Category: ErrCategoryProtocol,
		Code:     "unexpected_reply",
		Message:  "unexpected reply",
	}

	// Build errors
	ErrBuildFailed = &ExecutionError{
		Category: ErrCategoryBuild,
		Code:     "build_failed",
		Message:  "could not build request",
	}
	ErrInitFailed = &ExecutionError{
		Category: ErrCategoryBuild,
		Code:     "init_failed",
		Message:  "command setup failed",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of the first ExecutionError in err's
// chain, or ErrCategoryNone.
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryNone
}

// ExitCode maps err to a process exit status: 0 for nil, 1 otherwise.
// Protocol anomalies never reach here; they are logged and the session
// carries on.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
