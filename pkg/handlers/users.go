package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// UpdateRoleRequest for PUT /api/users/{id}/role
type UpdateRoleRequest struct {
	Role models.Role `json:"role"`
}

// UserHandler handles user administration. The service enforces the admin
// role; RequireRole rejects other roles before the tenant connection opens.
type UserHandler struct {
	users  services.UserService
	logger *zap.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// RegisterRoutes registers the user handler's routes on the given mux.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	admin := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(auth.RequireRole(models.RoleAdmin)(tenantMiddleware(next)))
	}
	base := "/api/users"

	mux.HandleFunc("GET "+base, admin(h.List))
	mux.HandleFunc("POST "+base, admin(h.Create))
	mux.HandleFunc("GET "+base+"/{id}", admin(h.Get))
	mux.HandleFunc("PUT "+base+"/{id}", admin(h.Update))
	mux.HandleFunc("PUT "+base+"/{id}/role", admin(h.UpdateRole))
	mux.HandleFunc("DELETE "+base+"/{id}", admin(h.Delete))
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, h.logger)
	if !ok {
		return
	}

	users, err := h.users.List(r.Context(), caller, page)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, newListResponse(users, page), h.logger)
}

// Create handles POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	var req services.UserInput
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.Create(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, user, h.logger)
}

// Get handles GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// Update handles PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req services.UserInput
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.Update(r.Context(), caller, id, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// UpdateRole handles PUT /api/users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.UpdateRole(r.Context(), caller, id, req.Role)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// Delete handles DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
