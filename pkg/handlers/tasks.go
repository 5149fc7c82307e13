package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// TaskHandler handles bid generation tasks and the generation endpoints.
type TaskHandler struct {
	tasks      services.TaskService
	generation services.GenerationService
	bids       services.BidService
	logger     *zap.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(
	tasks services.TaskService,
	generation services.GenerationService,
	bids services.BidService,
	logger *zap.Logger,
) *TaskHandler {
	return &TaskHandler{
		tasks:      tasks,
		generation: generation,
		bids:       bids,
		logger:     logger,
	}
}

// RegisterRoutes registers the task handler's routes on the given mux.
func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/tasks"

	mux.HandleFunc("GET "+base, protect(authMiddleware, tenantMiddleware, h.List))
	mux.HandleFunc("POST "+base, protect(authMiddleware, tenantMiddleware, h.Create))
	mux.HandleFunc("GET "+base+"/{id}", protect(authMiddleware, tenantMiddleware, h.Get))
	mux.HandleFunc("POST "+base+"/{id}/cancel", protect(authMiddleware, tenantMiddleware, h.Cancel))
	mux.HandleFunc("GET "+base+"/{id}/bid", protect(authMiddleware, tenantMiddleware, h.GetBid))

	mux.HandleFunc("POST /api/generate", protect(authMiddleware, tenantMiddleware, h.Generate))
	mux.HandleFunc("POST /api/generate/section", protect(authMiddleware, tenantMiddleware, h.GenerateSection))
}

// List handles GET /api/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, h.logger)
	if !ok {
		return
	}

	tasks, err := h.tasks.List(r.Context(), caller, page)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newListResponse(tasks, page), h.logger)
}

// Create handles POST /api/tasks. The task is created pending; nothing is
// generated until POST /api/generate.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	var req services.TaskInput
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	task, err := h.tasks.Create(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, task, h.logger)
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, task, h.logger)
}

// Cancel handles POST /api/tasks/{id}/cancel
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	task, err := h.tasks.Cancel(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	h.logger.Info("Task cancelled", zap.String("task_id", task.ID.String()))
	writeData(w, http.StatusOK, task, h.logger)
}

// GetBid handles GET /api/tasks/{id}/bid
func (h *TaskHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	bid, err := h.bids.GetByTask(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, bid, h.logger)
}

// Generate handles POST /api/generate. A failed generation still returns
// 200 with the failed task; only rejected requests return an error status.
func (h *TaskHandler) Generate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	var req services.TaskInput
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	task, err := h.generation.Generate(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, task, h.logger)
}

// GenerateSection handles POST /api/generate/section
func (h *TaskHandler) GenerateSection(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	var req services.SectionInput
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.generation.GenerateSection(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}
