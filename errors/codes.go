package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Construction errors, raised synchronously while a pipeline is assembled.
const (
	// ErrCodeInvalidConfig indicates an invalid stage or service configuration.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Runtime errors, surfaced once at the consumer of a failed stream.
const (
	// ErrCodeTransformFailed indicates a user transform returned an error.
	ErrCodeTransformFailed ErrorCode = "TRANSFORM_FAILED"
	// ErrCodeSourceFailed indicates the source sequence failed mid-pull.
	ErrCodeSourceFailed ErrorCode = "SOURCE_FAILED"
	// ErrCodeSinkFailed indicates the terminal callback returned an error.
	ErrCodeSinkFailed ErrorCode = "SINK_FAILED"
	// ErrCodeStagePanic indicates a callback panicked inside a stage worker.
	ErrCodeStagePanic ErrorCode = "STAGE_PANIC"
)

// Lifecycle errors
const (
	// ErrCodeCanceled indicates the run was canceled by its caller.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeTimeout indicates the run exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransformFailed: true,
	ErrCodeSourceFailed:    true,
	ErrCodeTimeout:         true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
