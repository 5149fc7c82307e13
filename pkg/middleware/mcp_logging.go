package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/logging"
)

// maxLoggedRPCBody bounds how much of an MCP request is buffered for logging.
const maxLoggedRPCBody = 1 << 20

// MCPRequestLogger logs JSON-RPC calls made to the MCP endpoint: the method,
// the tool name with redacted arguments, and the outcome. A nil logger
// disables logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedRPCBody+1))
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				http.Error(w, "unreadable request body", http.StatusBadRequest)
				return
			}
			if len(body) > maxLoggedRPCBody {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var req rpcRequest
			if err := json.Unmarshal(body, &req); err != nil {
				logger.Debug("MCP request is not JSON-RPC", zap.Error(err))
			}
			tool := req.Params.Name

			logger.Debug("MCP request",
				zap.String("method", req.Method),
				zap.String("tool", tool),
				zap.Any("arguments", logging.RedactFields(req.Params.Arguments)),
			)

			rec := newRecorder(w, true)
			start := time.Now()
			next.ServeHTTP(rec, r)
			duration := time.Since(start)

			var resp rpcResponse
			if err := json.Unmarshal(rec.body.Bytes(), &resp); err != nil {
				logger.Debug("MCP response is not JSON-RPC",
					zap.String("tool", tool),
					zap.Int("status", rec.status),
				)
				return
			}

			switch {
			case resp.Error != nil:
				logger.Warn("MCP call failed",
					zap.String("tool", tool),
					zap.Int("error_code", resp.Error.Code),
					zap.String("error_message", resp.Error.Message),
					zap.Duration("duration", duration),
				)
			case resp.Result.IsError:
				logger.Warn("MCP tool returned error",
					zap.String("tool", tool),
					zap.Duration("duration", duration),
				)
			default:
				logger.Debug("MCP call succeeded",
					zap.String("tool", tool),
					zap.Duration("duration", duration),
				)
			}
		})
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
