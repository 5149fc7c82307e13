package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// UploadRFPResponse for POST /api/uploads/rfp
type UploadRFPResponse struct {
	FileURL string `json:"file_url"`
}

// UploadHandler accepts multipart document uploads.
type UploadHandler struct {
	uploads services.UploadService
	logger  *zap.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(uploads services.UploadService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

// RegisterRoutes registers the upload handler's routes on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/uploads/rfp", protect(authMiddleware, tenantMiddleware, h.UploadRFP))
	mux.HandleFunc("POST /api/uploads/templates", protect(authMiddleware, tenantMiddleware, h.UploadTemplate))
}

// UploadRFP handles POST /api/uploads/rfp (multipart field "file")
func (h *UploadHandler) UploadRFP(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	filename, data, ok := h.readFile(w, r)
	if !ok {
		return
	}

	url, err := h.uploads.UploadRFP(r.Context(), caller, filename, data)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, UploadRFPResponse{FileURL: url}, h.logger)
}

// UploadTemplate handles POST /api/uploads/templates
// (multipart fields "file", "name", "template_type")
func (h *UploadHandler) UploadTemplate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	filename, data, ok := h.readFile(w, r)
	if !ok {
		return
	}

	tmpl, err := h.uploads.UploadTemplate(r.Context(), caller, services.TemplateUpload{
		Name:         r.FormValue("name"),
		TemplateType: r.FormValue("template_type"),
		Filename:     filename,
		Data:         data,
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, tmpl, h.logger)
}

// readFile reads the "file" part of a multipart request, bounded by
// services.MaxUploadBytes.
func (h *UploadHandler) readFile(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "File is too large", h.logger)
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form", h.logger)
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing file field", h.logger)
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxUploadBytes+1))
	if err != nil {
		h.logger.Error("Failed to read upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read file", h.logger)
		return "", nil, false
	}
	return header.Filename, data, true
}
