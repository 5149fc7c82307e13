package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"auth", errors.New("error, status code: 401, message: invalid api key"), ErrorTypeAuth, false},
		{"model", errors.New("The model `gpt-9` does not exist"), ErrorTypeModel, false},
		{"not found", errors.New("status code: 404"), ErrorTypeEndpoint, false},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ErrorTypeEndpoint, true},
		{"deadline", context.DeadlineExceeded, ErrorTypeEndpoint, true},
		{"rate limit", errors.New("status code: 429, rate limit reached"), ErrorTypeRate, true},
		{"overloaded", errors.New("anthropic api error type: overloaded_error"), ErrorTypeRate, true},
		{"server", errors.New("status code: 503"), ErrorTypeEndpoint, true},
		{"canceled", context.Canceled, ErrorTypeUnknown, false},
		{"other", errors.New("boom"), ErrorTypeUnknown, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyError(tc.err)
			if got.Type != tc.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tc.wantType)
			}
			if got.Retryable != tc.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tc.retryable)
			}
			if !errors.Is(got, tc.err) {
				t.Errorf("classified error does not wrap the cause")
			}
		})
	}
}

func TestClassifyError_KeepsStructuredError(t *testing.T) {
	orig := NewError(ErrorTypeResponse, "no choices", true, nil)
	wrapped := fmt.Errorf("generate: %w", orig)

	if got := ClassifyError(wrapped); got != orig {
		t.Errorf("expected the wrapped *Error to be returned unchanged")
	}
	if ClassifyError(nil) != nil {
		t.Errorf("ClassifyError(nil) should be nil")
	}
}

func TestError_MessageHidesEndpointPath(t *testing.T) {
	err := ClassifyError(errors.New("status code: 500")).withContext("gpt-4o", "https://llm.internal:8443/v1?key=secret")

	msg := err.Error()
	if !strings.Contains(msg, "endpoint=llm.internal:8443") {
		t.Errorf("expected host in message, got %q", msg)
	}
	if strings.Contains(msg, "secret") {
		t.Errorf("message leaks query string: %q", msg)
	}
	if !strings.Contains(msg, "model=gpt-4o") || !strings.Contains(msg, "HTTP 500") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("x: %w", NewError(ErrorTypeRate, "slow down", true, nil))) {
		t.Errorf("wrapped retryable error not detected")
	}
	if IsRetryable(errors.New("plain")) {
		t.Errorf("plain errors are not retryable")
	}
}
