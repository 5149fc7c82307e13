package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/logging"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// WithTenantContext binds each request to a connection scoped to the
// caller's company and releases it when the handler returns. It must run
// after authentication has stored a models.Caller.
func WithTenantContext(scoper TenantScoper, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	logger = logger.Named("tenant")
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			caller, ok := models.GetCaller(r.Context())
			if !ok || caller.Validate() != nil {
				logger.Warn("Tenant scope requested without a caller", zap.String("path", r.URL.Path))
				writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			ctx, cleanup, err := scoper.WithTenantScope(r.Context(), caller.CompanyID)
			if err != nil {
				logger.Error("Failed to open tenant scope",
					zap.String("company_id", caller.CompanyID.String()),
					zap.String("error", logging.SanitizeError(err)))
				writeError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}
			defer cleanup()

			next(w, r.WithContext(ctx))
		}
	}
}

// PassthroughTenantContext is the tenant middleware for the in-memory store,
// which filters by company on every call instead.
func PassthroughTenantContext() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return next
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
