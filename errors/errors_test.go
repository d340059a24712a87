package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeTransformFailed, true},
		{ErrCodeSourceFailed, true},
		{ErrCodeTimeout, true},
		{ErrCodeInvalidConfig, false},
		{ErrCodeSinkFailed, false},
		{ErrCodeStagePanic, false},
		{ErrCodeCanceled, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := New(tc.code, "x").Retryable; got != tc.want {
				t.Errorf("retryable = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAppError_ErrorString(t *testing.T) {
	cause := fmt.Errorf("disk gone")
	err := TransformFailed("read-file", cause)

	msg := err.Error()
	if !strings.Contains(msg, "TRANSFORM_FAILED") {
		t.Errorf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "[read-file]") {
		t.Errorf("expected stage in message, got %q", msg)
	}
	if !strings.Contains(msg, "disk gone") {
		t.Errorf("expected cause in message, got %q", msg)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("root")
	err := SourceFailed("source", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestInvalidConfig(t *testing.T) {
	err := InvalidConfig("width", "must be >= 1")
	if err.Code != ErrCodeInvalidConfig {
		t.Errorf("expected INVALID_CONFIG, got %s", err.Code)
	}
	if err.Details["field"] != "width" {
		t.Errorf("expected field=width, got %v", err.Details["field"])
	}
	if err.Retryable {
		t.Error("construction errors must not be retryable")
	}
}

func TestPanic_KeepsErrorValue(t *testing.T) {
	boom := stderrors.New("boom")
	err := Panic("fanout", boom)
	if err.Code != ErrCodeStagePanic {
		t.Errorf("expected STAGE_PANIC, got %s", err.Code)
	}
	if !stderrors.Is(err, boom) {
		t.Error("expected panic error value as cause")
	}

	err = Panic("fanout", "plain string")
	if err.Cause != nil {
		t.Errorf("expected nil cause for non-error panic, got %v", err.Cause)
	}
	if !strings.Contains(err.Message, "plain string") {
		t.Errorf("expected panic value in message, got %q", err.Message)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext("s", context.Canceled); got.Code != ErrCodeCanceled {
		t.Errorf("expected CANCELED, got %s", got.Code)
	}
	got := FromContext("s", context.DeadlineExceeded)
	if got.Code != ErrCodeTimeout {
		t.Errorf("expected TIMEOUT, got %s", got.Code)
	}
	if !stderrors.Is(got, context.DeadlineExceeded) {
		t.Error("expected context sentinel to stay reachable")
	}
}

func TestInterrupted(t *testing.T) {
	plain := stderrors.New("plain")
	sink := SinkFailed("sink", context.Canceled)
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"canceled", context.Canceled, ErrCodeCanceled},
		{"wrapped deadline", fmt.Errorf("pull: %w", context.DeadlineExceeded), ErrCodeTimeout},
		{"plain", plain, ""},
		{"already coded", sink, ErrCodeSinkFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Interrupted("run", tc.err)
			if CodeOf(got) != tc.want {
				t.Errorf("code = %q, want %q", CodeOf(got), tc.want)
			}
			if tc.err != nil && !stderrors.Is(got, tc.err) {
				t.Errorf("original error lost: %v", got)
			}
		})
	}
}

func TestCodeOf_And_HasCode(t *testing.T) {
	inner := TransformFailed("pipe", stderrors.New("bad"))
	outer := SinkFailed("sink", inner)
	wrapped := fmt.Errorf("run: %w", outer)

	if CodeOf(wrapped) != ErrCodeSinkFailed {
		t.Errorf("expected outer code SINK_FAILED, got %s", CodeOf(wrapped))
	}
	if !HasCode(wrapped, ErrCodeTransformFailed) {
		t.Error("expected inner TRANSFORM_FAILED to be found")
	}
	if HasCode(wrapped, ErrCodeStagePanic) {
		t.Error("unexpected STAGE_PANIC")
	}
	if CodeOf(stderrors.New("plain")) != "" {
		t.Error("expected empty code for plain error")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil must not be retryable")
	}
	if !IsRetryable(stderrors.New("plain")) {
		t.Error("plain errors are retryable")
	}
	if IsRetryable(InvalidConfig("size", "zero")) {
		t.Error("INVALID_CONFIG must not be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrap: %w", TransformFailed("s", nil))) {
		t.Error("wrapped TRANSFORM_FAILED must be retryable")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCodeSinkFailed, "x").WithDetails(map[string]any{"lane": 1, "batch": 2})
	if err.Details["lane"] != 1 || err.Details["batch"] != 2 {
		t.Errorf("unexpected details %v", err.Details)
	}
}
