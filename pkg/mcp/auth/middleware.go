// Package mcpauth authenticates MCP requests. Failures are answered with
// RFC 6750 Bearer challenges so MCP clients can start their token flow.
package mcpauth

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// Middleware guards the MCP endpoint.
type Middleware struct {
	authService auth.AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware.
func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger.Named("mcp-auth"),
	}
}

// RequireAuth validates the bearer token and stores the claims, the raw
// token and the resolved models.Caller in the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP request without a valid token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.challenge(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		caller, err := claims.Caller()
		if err != nil {
			m.logger.Warn("MCP token carries no usable company identity",
				zap.String("subject", claims.Subject),
				zap.Error(err))
			m.challenge(w, http.StatusUnauthorized, "invalid_token", "The access token is missing the company scope")
			return
		}

		ctx := context.WithValue(r.Context(), auth.ClaimsKey, claims)
		ctx = context.WithValue(ctx, auth.TokenKey, token)
		ctx = models.WithCaller(ctx, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// challenge writes an RFC 6750 section 3 error response.
func (m *Middleware) challenge(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="ekaya-bidflow", error=%q, error_description=%q`, code, description))
	w.WriteHeader(status)
}
