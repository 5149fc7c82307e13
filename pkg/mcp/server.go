// Package mcp exposes the bid services to MCP clients over streamable HTTP.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/mcp/tools"
)

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server with the bid tools registered. observer
// may be nil.
func NewServer(name string, deps *tools.Deps, observer *ToolObserver, logger *zap.Logger) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if observer != nil {
		opts = append(opts, server.WithHooks(observer.Hooks()))
	}

	s := server.NewMCPServer(name, deps.Version, opts...)
	tools.Register(s, deps)

	return &Server{
		mcp:    s,
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Handler serves the MCP endpoint. Sessions are not kept between requests;
// the HTTP mux decides the path.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}
