package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Stage names the pipeline stage that raised the error, if any.
	Stage string `json:"stage,omitempty"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// InvalidConfig reports a construction error for a named setting.
func InvalidConfig(field, reason string) *AppError {
	e := New(ErrCodeInvalidConfig, fmt.Sprintf("invalid %s: %s", field, reason))
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// TransformFailed wraps an error returned by a user transform.
func TransformFailed(stage string, cause error) *AppError {
	e := New(ErrCodeTransformFailed, "transform failed")
	e.Stage = stage
	e.Cause = cause
	return e
}

// SourceFailed wraps an error yielded by a source sequence.
func SourceFailed(stage string, cause error) *AppError {
	e := New(ErrCodeSourceFailed, "source failed")
	e.Stage = stage
	e.Cause = cause
	return e
}

// SinkFailed wraps an error returned by a terminal callback.
func SinkFailed(stage string, cause error) *AppError {
	e := New(ErrCodeSinkFailed, "sink failed")
	e.Stage = stage
	e.Cause = cause
	return e
}

// Panic converts a recovered panic value into an error.
func Panic(stage string, recovered any) *AppError {
	e := New(ErrCodeStagePanic, fmt.Sprintf("panic: %v", recovered))
	e.Stage = stage
	if err, ok := recovered.(error); ok {
		e.Cause = err
	}
	return e
}

// FromContext converts a context error into an AppError, keeping the
// context sentinel reachable through errors.Is.
func FromContext(stage string, err error) *AppError {
	code := ErrCodeCanceled
	if stderrors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	e := New(code, "run interrupted")
	e.Stage = stage
	e.Cause = err
	return e
}

// Interrupted converts a bare context error ending a run into CANCELED or
// TIMEOUT. Any other error, including one that already carries a code, is
// returned unchanged.
func Interrupted(stage string, err error) error {
	if err == nil || CodeOf(err) != "" {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return FromContext(stage, err)
	}
	return err
}

// --- Inspection ---

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		appErr, ok := AsAppError(err)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRetryable reports whether err is an AppError marked retryable.
// Errors without an AppError in their chain are reported as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}
