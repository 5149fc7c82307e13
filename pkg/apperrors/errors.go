// Package apperrors defines the error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	// ErrExternalFailure marks a failure of a collaborator (file store, AI service, broker).
	ErrExternalFailure = errors.New("external failure")
)

// Conflict variants. Each wraps ErrConflict so callers can match either.
var (
	ErrDuplicateUsername     = &kindError{msg: "username already exists in company", kind: ErrConflict}
	ErrInvalidRole           = &kindError{msg: "invalid role", kind: ErrConflict}
	ErrInvalidStatus         = &kindError{msg: "invalid status", kind: ErrConflict}
	ErrTaskTerminal          = &kindError{msg: "task already in terminal state", kind: ErrConflict}
	ErrJustificationRequired = &kindError{msg: "finalized bid requires review notes", kind: ErrConflict}
	ErrTooManyGenerations    = &kindError{msg: "too many concurrent generations for company", kind: ErrConflict}
	ErrInvalidCredentials    = &kindError{msg: "invalid credentials", kind: ErrUnauthorized}
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Kind returns the stable, machine-readable error kind for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_request"
	case errors.Is(err, ErrExternalFailure):
		return "external_failure"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps err to the status code used by the JSON API.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "unauthorized":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "invalid_request":
		return http.StatusBadRequest
	case "external_failure":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
