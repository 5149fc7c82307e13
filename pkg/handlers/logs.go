package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// LogHandler serves the operation log.
type LogHandler struct {
	audit  services.AuditService
	logger *zap.Logger
}

// NewLogHandler creates a new operation log handler.
func NewLogHandler(audit services.AuditService, logger *zap.Logger) *LogHandler {
	return &LogHandler{audit: audit, logger: logger}
}

// RegisterRoutes registers the log handler's routes on the given mux.
func (h *LogHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/logs", protect(authMiddleware, tenantMiddleware, h.Query))
}

// Query handles GET /api/logs?operation_type=&resource_type=&start_date=&end_date=
// Dates are RFC 3339 timestamps or YYYY-MM-DD; a bare end date covers the whole day.
func (h *LogHandler) Query(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.LogFilter{
		OperationType: q.Get("operation_type"),
		ResourceType:  q.Get("resource_type"),
	}
	var err error
	if filter.From, err = parseDate(q.Get("start_date"), false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid start_date", h.logger)
		return
	}
	if filter.To, err = parseDate(q.Get("end_date"), true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid end_date", h.logger)
		return
	}

	entries, err := h.audit.Query(r.Context(), caller, filter, page)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newListResponse(entries, page), h.logger)
}

func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
