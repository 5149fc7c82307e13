package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// KnowledgeSearchRequest for POST /api/knowledge-chunks/search
type KnowledgeSearchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	TenantID string `json:"tenant_id,omitempty"`
}

// KnowledgeSearchResponse for POST /api/knowledge-chunks/search
type KnowledgeSearchResponse struct {
	Results []*models.ScoredChunk `json:"results"`
}

// KnowledgeHandler serves similarity search over the knowledge base. CRUD
// on chunks goes through ResourceHandler.
type KnowledgeHandler struct {
	knowledge services.KnowledgeService
	logger    *zap.Logger
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(knowledge services.KnowledgeService, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge, logger: logger}
}

// RegisterRoutes registers the knowledge handler's routes on the given mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST "+ResourcePath(models.ResourceKnowledgeChunk)+"/search", protect(authMiddleware, tenantMiddleware, h.Search))
}

// Search handles POST /api/knowledge-chunks/search
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	var req KnowledgeSearchRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	hits, err := h.knowledge.Search(r.Context(), caller, req.Query, req.TopK, req.TenantID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	if hits == nil {
		hits = []*models.ScoredChunk{}
	}
	writeData(w, http.StatusOK, KnowledgeSearchResponse{Results: hits}, h.logger)
}
