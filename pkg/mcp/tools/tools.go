// Package tools registers the read-only MCP tools over the bid services.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/models"
	"github.com/ekaya-inc/ekaya-bidflow/pkg/services"
)

// Deps are the services the tools read from.
type Deps struct {
	Projects  services.ResourceService[models.Project]
	Tasks     services.TaskService
	Bids      services.BidService
	Knowledge services.KnowledgeService
	Deviation services.DeviationService
	Version   string
	Logger    *zap.Logger
}

// Register adds every tool to s.
func Register(s *server.MCPServer, deps *Deps) {
	registerHealthTool(s, deps)
	registerListProjectsTool(s, deps)
	registerGetBidTaskTool(s, deps)
	registerSearchKnowledgeTool(s, deps)
	registerDeviationTableTool(s, deps)
}

func readOnly(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)
	opts = append(opts,
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	return mcp.NewTool(name, opts...)
}

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func registerHealthTool(s *server.MCPServer, deps *Deps) {
	tool := readOnly("health", "Returns server status and version.")
	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(healthResult{Status: "ok", Version: deps.Version})
	})
}

type listProjectsResult struct {
	Projects []*models.Project `json:"projects"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func registerListProjectsTool(s *server.MCPServer, deps *Deps) {
	tool := readOnly("list_projects",
		"Lists the tender projects of your company, newest first.",
		mcp.WithNumber("limit", mcp.Description("Maximum number of projects (default 50, max 500)")),
		mcp.WithNumber("offset", mcp.Description("Number of projects to skip")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, denied := callerOf(ctx)
		if denied != nil {
			return denied, nil
		}
		limit, err := optionalInt(req, "limit", models.DefaultPageLimit)
		if err != nil {
			return NewErrorResult("invalid_request", err.Error()), nil
		}
		offset, err := optionalInt(req, "offset", 0)
		if err != nil {
			return NewErrorResult("invalid_request", err.Error()), nil
		}
		if limit < 0 || offset < 0 {
			return NewErrorResult("invalid_request", "limit and offset must not be negative"), nil
		}

		page := models.Page{Limit: limit, Offset: offset}.Normalize(models.DefaultPageLimit)
		projects, err := deps.Projects.List(ctx, caller, page)
		if err != nil {
			return serviceError(err)
		}
		return jsonResult(listProjectsResult{Projects: projects, Limit: page.Limit, Offset: page.Offset})
	})
}

type bidTaskResult struct {
	Task *models.BidGenerationTask `json:"task"`
	Bid  *models.GeneratedBid      `json:"bid,omitempty"`
}

func registerGetBidTaskTool(s *server.MCPServer, deps *Deps) {
	tool := readOnly("get_bid_task",
		"Returns a bid generation task and, once it has completed, the generated bid.",
		mcp.WithString("task_id", mcp.Required(), mcp.Description("UUID of the task")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, denied := callerOf(ctx)
		if denied != nil {
			return denied, nil
		}
		taskID, err := requiredUUID(req, "task_id")
		if err != nil {
			return NewErrorResult("invalid_request", err.Error()), nil
		}

		task, err := deps.Tasks.Get(ctx, caller, taskID)
		if err != nil {
			return serviceError(err)
		}
		result := bidTaskResult{Task: task}
		if task.Status == models.TaskStatusCompleted {
			bid, err := deps.Bids.GetByTask(ctx, caller, taskID)
			if err != nil {
				return serviceError(err)
			}
			result.Bid = bid
		}
		return jsonResult(result)
	})
}

type knowledgeHit struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	TenantID string         `json:"tenant_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

func registerSearchKnowledgeTool(s *server.MCPServer, deps *Deps) {
	tool := readOnly("search_knowledge",
		"Finds passages of previous bids similar to a query.",
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to return (default 5)")),
		mcp.WithString("tenant_id", mcp.Description("Optional partition inside the company, such as a business line")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, denied := callerOf(ctx)
		if denied != nil {
			return denied, nil
		}
		query := optionalString(req, "query")
		if query == "" {
			return NewErrorResult("invalid_request", `parameter "query" is required`), nil
		}
		topK, err := optionalInt(req, "top_k", 5)
		if err != nil {
			return NewErrorResult("invalid_request", err.Error()), nil
		}

		hits, err := deps.Knowledge.Search(ctx, caller, query, topK, optionalString(req, "tenant_id"))
		if err != nil {
			return serviceError(err)
		}

		out := make([]knowledgeHit, 0, len(hits))
		for _, hit := range hits {
			out = append(out, knowledgeHit{
				ID:       hit.Chunk.ID.String(),
				Content:  hit.Chunk.Content,
				TenantID: hit.Chunk.TenantID,
				Metadata: hit.Chunk.Metadata,
				Score:    hit.Score,
			})
		}
		return jsonResult(map[string]any{"results": out})
	})
}

type deviationResult struct {
	ProjectID    string                `json:"project_id"`
	ProductModel string                `json:"product_model,omitempty"`
	Rows         []models.DeviationRow `json:"rows"`
}

func registerDeviationTableTool(s *server.MCPServer, deps *Deps) {
	tool := readOnly("deviation_table",
		"Compares the extracted requirements of a project with our product parameters.",
		mcp.WithString("project_id", mcp.Required(), mcp.Description("UUID of the project")),
		mcp.WithString("product_model", mcp.Description("Restrict the comparison to one product model")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		caller, denied := callerOf(ctx)
		if denied != nil {
			return denied, nil
		}
		projectID, err := requiredUUID(req, "project_id")
		if err != nil {
			return NewErrorResult("invalid_request", err.Error()), nil
		}
		model := optionalString(req, "product_model")

		rows, err := deps.Deviation.Table(ctx, caller, projectID, model)
		if err != nil {
			return serviceError(err)
		}
		return jsonResult(deviationResult{ProjectID: projectID.String(), ProductModel: model, Rows: rows})
	})
}
