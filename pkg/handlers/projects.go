package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// ProjectHandler serves the project scoped views: its RFP items and its
// technical deviation table.
type ProjectHandler struct {
	items     services.RFPItemService
	deviation services.DeviationService
	logger    *zap.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(items services.RFPItemService, deviation services.DeviationService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		items:     items,
		deviation: deviation,
		logger:    logger,
	}
}

// RegisterRoutes registers the project handler's routes on the given mux.
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/projects/{pid}"

	mux.HandleFunc("GET "+base+"/rfp-items", protect(authMiddleware, tenantMiddleware, h.ListRFPItems))
	mux.HandleFunc("GET "+base+"/deviation-table", protect(authMiddleware, tenantMiddleware, h.DeviationTable))
}

// ListRFPItems handles GET /api/projects/{pid}/rfp-items
func (h *ProjectHandler) ListRFPItems(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, h.logger)
	if !ok {
		return
	}

	items, err := h.items.ListByProject(r.Context(), caller, projectID, page)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newListResponse(items, page), h.logger)
}

// DeviationTableResponse for GET /api/projects/{pid}/deviation-table
type DeviationTableResponse struct {
	ProjectID    string                `json:"project_id"`
	ProductModel string                `json:"product_model,omitempty"`
	Rows         []models.DeviationRow `json:"rows"`
}

// DeviationTable handles GET /api/projects/{pid}/deviation-table?product_model=
func (h *ProjectHandler) DeviationTable(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	productModel := r.URL.Query().Get("product_model")

	rows, err := h.deviation.Table(r.Context(), caller, projectID, productModel)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if rows == nil {
		rows = []models.DeviationRow{}
	}
	writeData(w, http.StatusOK, DeviationTableResponse{
		ProjectID:    projectID.String(),
		ProductModel: productModel,
		Rows:         rows,
	}, h.logger)
}
