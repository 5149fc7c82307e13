package handlers

import (
	"net/http"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
)

// TenantMiddleware wraps a handler with the company-scoped database connection.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// protect chains authentication and tenant scoping in front of h.
func protect(authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware, h http.HandlerFunc) http.HandlerFunc {
	return authMiddleware.RequireAuth(tenantMiddleware(h))
}
