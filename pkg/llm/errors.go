package llm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrorType classifies model failures.
type ErrorType string

const (
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeRate     ErrorType = "rate_limit"
	ErrorTypeResponse ErrorType = "response"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
	Model      string
	Endpoint   string
}

// Error implements the error interface. The endpoint is reduced to its host.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Endpoint != "" {
		if u, err := url.Parse(e.Endpoint); err == nil && u.Host != "" {
			parts = append(parts, fmt.Sprintf("endpoint=%s", u.Host))
		}
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

func (e *Error) withContext(model, endpoint string) *Error {
	if e.Model == "" {
		e.Model = model
	}
	if e.Endpoint == "" {
		e.Endpoint = endpoint
	}
	return e
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// classification maps substrings of a provider error onto an Error.
// The first matching rule wins.
var classification = []struct {
	match     []string
	errType   ErrorType
	message   string
	retryable bool
}{
	{[]string{"401", "unauthorized", "invalid api key", "authentication_error"}, ErrorTypeAuth, "authentication failed", false},
	{[]string{"model_not_found", "model not found", "does not exist"}, ErrorTypeModel, "model not found", false},
	{[]string{"404"}, ErrorTypeEndpoint, "endpoint not found", false},
	{[]string{"connection refused", "no such host"}, ErrorTypeEndpoint, "connection failed", true},
	{[]string{"timeout", "deadline exceeded"}, ErrorTypeEndpoint, "request timeout", true},
	{[]string{"429", "rate limit", "rate_limit", "overloaded"}, ErrorTypeRate, "rate limited", true},
	{[]string{"500", "502", "503", "504", "529"}, ErrorTypeEndpoint, "server error", true},
}

// ClassifyError categorizes an error and returns a structured Error.
// Context cancellation is never retryable.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	if strings.Contains(lower, "context canceled") {
		return &Error{Type: ErrorTypeUnknown, Message: "request canceled", Cause: err, StatusCode: statusCode}
	}

	for _, rule := range classification {
		for _, m := range rule.match {
			if strings.Contains(lower, m) {
				return &Error{Type: rule.errType, Message: rule.message, Retryable: rule.retryable, Cause: err, StatusCode: statusCode}
			}
		}
	}

	return &Error{Type: ErrorTypeUnknown, Message: "llm error", Cause: err, StatusCode: statusCode}
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}
