package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/logging"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/metrics"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// Tool call outcomes recorded in metrics.
const (
	outcomeSuccess   = "success"
	outcomeToolError = "tool_error"
	outcomeError     = "error"
)

// ToolObserver records each MCP tool call in the logs and in Prometheus.
type ToolObserver struct {
	metrics *metrics.Metrics
	logger  *zap.Logger

	// startTimes holds when each in-flight call began, keyed by request ID.
	startTimes sync.Map
}

// NewToolObserver creates a ToolObserver. m may be nil.
func NewToolObserver(m *metrics.Metrics, logger *zap.Logger) *ToolObserver {
	return &ToolObserver{
		metrics: m,
		logger:  logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go hooks that feed the observer.
func (o *ToolObserver) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(o.beforeCallTool)
	hooks.AddAfterCallTool(o.afterCallTool)
	hooks.AddOnError(o.onError)
	return hooks
}

func (o *ToolObserver) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	o.startTimes.Store(id, time.Now())
}

func (o *ToolObserver) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	outcome := outcomeSuccess
	if result != nil && result.IsError {
		outcome = outcomeToolError
	}
	o.observe(ctx, id, req, outcome, nil)
}

func (o *ToolObserver) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}
	o.observe(ctx, id, req, outcomeError, err)
}

func (o *ToolObserver) observe(ctx context.Context, id any, req *mcplib.CallToolRequest, outcome string, err error) {
	start := time.Now()
	if v, ok := o.startTimes.LoadAndDelete(id); ok {
		start = v.(time.Time)
	}
	duration := time.Since(start)
	tool := req.Params.Name

	if o.metrics != nil {
		o.metrics.MCPToolCalls.WithLabelValues(tool, outcome).Inc()
		o.metrics.MCPToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	}

	fields := []zap.Field{
		zap.String("tool", tool),
		zap.String("outcome", outcome),
		zap.Duration("duration", duration),
	}
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		fields = append(fields, zap.Any("arguments", logging.RedactFields(args)))
	}
	if caller, ok := models.GetCaller(ctx); ok {
		fields = append(fields,
			zap.String("company_id", caller.CompanyID.String()),
			zap.String("user_id", caller.UserID.String()))
	}

	if err != nil {
		o.logger.Warn("MCP tool call failed", append(fields, zap.String("error", logging.SanitizeError(err)))...)
		return
	}
	o.logger.Info("MCP tool call", fields...)
}
