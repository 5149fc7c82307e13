package handlers

import (
	"net/http"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// ResourceHandler exposes the CRUD operations of one tenant-scoped resource
// kind under /api/{plural}.
type ResourceHandler[T any] struct {
	resource string
	base     string
	service  services.ResourceService[T]
	logger   *zap.Logger
}

// NewResourceHandler creates a handler for resource, an operation log
// resource name such as "product_spec". Routes use its kebab-case plural.
func NewResourceHandler[T any](resource string, service services.ResourceService[T], logger *zap.Logger) *ResourceHandler[T] {
	return &ResourceHandler[T]{
		resource: resource,
		base:     ResourcePath(resource),
		service:  service,
		logger:   logger.With(zap.String("resource", resource)),
	}
}

// ResourcePath returns the collection path for a resource name.
func ResourcePath(resource string) string {
	return "/api/" + strings.ReplaceAll(inflection.Plural(resource), "_", "-")
}

// RegisterRoutes registers the resource's routes on the given mux.
func (h *ResourceHandler[T]) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET "+h.base, protect(authMiddleware, tenantMiddleware, h.List))
	mux.HandleFunc("POST "+h.base, protect(authMiddleware, tenantMiddleware, h.Create))
	mux.HandleFunc("GET "+h.base+"/{id}", protect(authMiddleware, tenantMiddleware, h.Get))
	mux.HandleFunc("PUT "+h.base+"/{id}", protect(authMiddleware, tenantMiddleware, h.Update))
	mux.HandleFunc("DELETE "+h.base+"/{id}", protect(authMiddleware, tenantMiddleware, h.Delete))
}

// List handles GET /api/{plural}
func (h *ResourceHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, h.logger)
	if !ok {
		return
	}

	items, err := h.service.List(r.Context(), caller, page)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newListResponse(items, page), h.logger)
}

// Create handles POST /api/{plural}
func (h *ResourceHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	entity := new(T)
	if !decodeJSON(w, r, entity, h.logger) {
		return
	}

	created, err := h.service.Create(r.Context(), caller, entity)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, created, h.logger)
}

// Get handles GET /api/{plural}/{id}
func (h *ResourceHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	entity, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, entity, h.logger)
}

// Update handles PUT /api/{plural}/{id}
func (h *ResourceHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	entity := new(T)
	if !decodeJSON(w, r, entity, h.logger) {
		return
	}

	updated, err := h.service.Update(r.Context(), caller, id, entity)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, updated, h.logger)
}

// Delete handles DELETE /api/{plural}/{id}
func (h *ResourceHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
