package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", ErrNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("get project: %w", ErrNotFound), "not_found"},
		{"duplicate username", ErrDuplicateUsername, "conflict"},
		{"terminal task", fmt.Errorf("cancel: %w", ErrTaskTerminal), "conflict"},
		{"bad credentials", ErrInvalidCredentials, "unauthorized"},
		{"forbidden", ErrForbidden, "forbidden"},
		{"invalid input", ErrInvalidInput, "invalid_request"},
		{"external", fmt.Errorf("s3: %w", ErrExternalFailure), "external_failure"},
		{"unknown", errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestConflictVariantsMatchConflict(t *testing.T) {
	for _, err := range []error{ErrDuplicateUsername, ErrInvalidRole, ErrInvalidStatus, ErrTaskTerminal, ErrJustificationRequired, ErrTooManyGenerations} {
		assert.ErrorIs(t, err, ErrConflict, err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrTaskTerminal))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrUnauthorized))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrExternalFailure))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("db down")))
}
