package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIsErrorCode_WrappedChain(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrNoSuitableWorker, "empty roster")
	wrapped := fmt.Errorf("routing request: %w", inner)

	if !IsErrorCode(wrapped, ErrNoSuitableWorker) {
		t.Fatalf("expected NO_SUITABLE_WORKER through wrap")
	}
	if IsErrorCode(wrapped, ErrSessionBusy) {
		t.Fatalf("unexpected SESSION_BUSY match")
	}
	if IsErrorCode(errors.New("plain"), ErrNoSuitableWorker) {
		t.Fatalf("plain error should not match")
	}
}

func TestGetErrorCode_NonStructured(t *testing.T) {
	t.Parallel()

	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code, got %s", got)
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
}
