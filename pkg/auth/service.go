package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// AuthService resolves the bearer of a request. Browser clients carry the
// token in the session cookie, API and MCP clients in the Authorization
// header.
type AuthService interface {
	// ValidateRequest returns the verified claims and the raw token.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	validator TokenValidator
	sessions  *SessionManager
	logger    *zap.Logger
}

// NewAuthService creates an AuthService. sessions may be nil when cookie
// sessions are disabled.
func NewAuthService(validator TokenValidator, sessions *SessionManager, logger *zap.Logger) AuthService {
	return &authService{
		validator: validator,
		sessions:  sessions,
		logger:    logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	token, source, err := s.extractToken(r)
	if err != nil {
		s.logger.Debug("No usable token in request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, "", err
	}

	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		s.logger.Debug("Token rejected",
			zap.String("path", r.URL.Path),
			zap.String("token_source", source),
			zap.Error(err))
		return nil, "", err
	}
	return claims, token, nil
}

// extractToken prefers the session cookie over the Authorization header.
// The scheme comparison is case-insensitive.
func (s *authService) extractToken(r *http.Request) (token, source string, err error) {
	if s.sessions != nil {
		if t, err := s.sessions.Token(r); err == nil && t != "" {
			return t, "session", nil
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", "", ErrMissingAuthorization
	}
	scheme, t, ok := strings.Cut(header, " ")
	t = strings.TrimSpace(t)
	if !ok || !strings.EqualFold(scheme, "Bearer") || t == "" {
		return "", "", ErrInvalidAuthFormat
	}
	return t, "header", nil
}

var _ AuthService = (*authService)(nil)
