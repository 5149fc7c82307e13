package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-bidflow/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/middleware"
)

// MCPHandler serves the MCP endpoint.
type MCPHandler struct {
	mcpHandler http.Handler
	logger     *zap.Logger
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(server *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		mcpHandler: server.Handler(),
		logger:     logger,
	}
}

// RegisterRoutes mounts POST /mcp. Layers from the outside in: bearer
// authentication, company scope, JSON-RPC logging.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux, mcpAuth *mcpauth.Middleware, tenantMiddleware TenantMiddleware) {
	logged := middleware.MCPRequestLogger(h.logger)(h.mcpHandler)
	scoped := tenantMiddleware(logged.ServeHTTP)
	mux.Handle("POST /mcp", mcpAuth.RequireAuth(scoped))
}
