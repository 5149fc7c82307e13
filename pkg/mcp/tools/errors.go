package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/apperrors"
)

// errInternal replaces internal failures so their details never reach a client.
var errInternal = errors.New("internal error")

// ErrorResponse is the body of a tool result that reports a recoverable error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResult returns a tool result flagged IsError. Use it for problems
// the client can act on, such as bad arguments or a missing entity.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	body, _ := json.Marshal(ErrorResponse{Error: true, Code: code, Message: message})
	result := mcp.NewToolResultText(string(body))
	result.IsError = true
	return result
}

// serviceError turns a service error into a tool result. Internal errors
// become a protocol error with a generic message.
func serviceError(err error) (*mcp.CallToolResult, error) {
	kind := apperrors.Kind(err)
	if kind == "internal_error" {
		return nil, errInternal
	}
	return NewErrorResult(kind, err.Error()), nil
}
