package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
)

// callerOf returns the authenticated caller, or an error result when the
// request reached the tool without one.
func callerOf(ctx context.Context) (models.Caller, *mcp.CallToolResult) {
	caller, ok := models.GetCaller(ctx)
	if !ok || caller.Validate() != nil {
		return models.Caller{}, NewErrorResult("unauthorized", "authentication required")
	}
	return caller, nil
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

func optionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return strings.TrimSpace(val)
}

// optionalInt reads a numeric argument. JSON numbers arrive as float64.
func optionalInt(req mcp.CallToolRequest, key string, def int) (int, error) {
	raw, ok := arguments(req)[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, ok := raw.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("parameter %q must be an integer", key)
	}
	return int(f), nil
}

func requiredUUID(req mcp.CallToolRequest, key string) (uuid.UUID, error) {
	raw := optionalString(req, key)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("parameter %q is required", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parameter %q: %q is not a valid UUID", key, raw)
	}
	return id, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
