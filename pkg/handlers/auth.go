package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// LoginRequest for POST /api/auth/login
type LoginRequest struct {
	CompanyID uuid.UUID `json:"company_id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
}

// MeResponse for GET /api/auth/me
type MeResponse struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
	Username  string `json:"username,omitempty"`
}

// AuthHandler handles login, logout and identity lookups.
type AuthHandler struct {
	login    services.LoginService
	sessions *auth.SessionManager
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler. sessions may be nil, in which
// case tokens are only returned in the response body.
func NewAuthHandler(login services.LoginService, sessions *auth.SessionManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		login:    login,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.Me))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.login.Login(r.Context(), req.CompanyID, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if h.sessions != nil {
		if err := h.sessions.Save(w, r, result.Token); err != nil {
			h.logger.Error("Failed to save session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to create session", h.logger)
			return
		}
	}

	writeData(w, http.StatusOK, result, h.logger)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if err := h.sessions.Clear(w, r); err != nil {
			h.logger.Warn("Failed to clear session", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r, h.logger)
	if !ok {
		return
	}

	response := MeResponse{
		UserID:    caller.UserID.String(),
		CompanyID: caller.CompanyID.String(),
		Role:      string(caller.Role),
	}
	if claims, ok := auth.GetClaims(r.Context()); ok {
		response.Username = claims.Username
	}
	writeData(w, http.StatusOK, response, h.logger)
}
