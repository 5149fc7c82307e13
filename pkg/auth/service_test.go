package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockValidator is a mock implementation of TokenValidator for testing.
type mockValidator struct {
	claims *Claims
	err    error
	seen   string
}

func (m *mockValidator) ValidateToken(tokenString string) (*Claims, error) {
	m.seen = tokenString
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockValidator) Close() {}

func TestAuthService_ValidateRequest_AuthHeader(t *testing.T) {
	validator := &mockValidator{claims: &Claims{Role: "admin"}}
	service := NewAuthService(validator, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer my-jwt-token")

	claims, token, err := service.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "my-jwt-token", token)
	assert.Equal(t, "admin", claims.Role)
}

func TestAuthService_ValidateRequest_SchemeIsCaseInsensitive(t *testing.T) {
	validator := &mockValidator{claims: &Claims{}}
	service := NewAuthService(validator, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "bearer   spaced-token ")

	_, token, err := service.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "spaced-token", token)
	assert.Equal(t, "spaced-token", validator.seen)
}

func TestAuthService_ValidateRequest_SessionTakesPrecedence(t *testing.T) {
	sessions := NewSessionManager("session-secret", time.Hour, false)

	// Obtain a real signed cookie by saving a session.
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Save(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), "session-token"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	validator := &mockValidator{claims: &Claims{}}
	service := NewAuthService(validator, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(cookies[0])
	req.Header.Set("Authorization", "Bearer header-token")

	_, token, err := service.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)
	assert.Equal(t, "session-token", validator.seen)
}

func TestAuthService_ValidateRequest_TamperedSessionFallsBackToHeader(t *testing.T) {
	sessions := NewSessionManager("session-secret", time.Hour, false)
	validator := &mockValidator{claims: &Claims{}}
	service := NewAuthService(validator, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: SessionName, Value: "forged"})
	req.Header.Set("Authorization", "Bearer header-token")

	_, token, err := service.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "header-token", token)
}

func TestAuthService_ValidateRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"missing", "", ErrMissingAuthorization},
		{"no bearer prefix", "just-a-token", ErrInvalidAuthFormat},
		{"wrong prefix", "Basic some-token", ErrInvalidAuthFormat},
		{"empty token", "Bearer ", ErrInvalidAuthFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewAuthService(&mockValidator{}, nil, zap.NewNop())
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, _, err := service.ValidateRequest(req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_ValidateRequest_TokenValidationError(t *testing.T) {
	validationErr := errors.New("token expired")
	service := NewAuthService(&mockValidator{err: validationErr}, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer expired")

	_, _, err := service.ValidateRequest(req)
	assert.ErrorIs(t, err, validationErr)
}

func TestSessionManager_Clear(t *testing.T) {
	sessions := NewSessionManager("session-secret", time.Hour, true)
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Clear(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
}
