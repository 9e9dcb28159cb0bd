package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"copyflat/internal/service"
)

func (s *Server) registerConvertTools() {
	s.mcp.AddTool(mcp.NewTool("preview_file",
		mcp.WithDescription("Decode the first records of the flat file mapped to a table without writing anything"),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithNumber("rows", mcp.Description("Number of records to decode (default 10)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handlePreviewFile)

	s.mcp.AddTool(mcp.NewTool("run_conversion",
		mcp.WithDescription("🛑 DESTRUCTIVE: Convert every mapped flat file. Overwrites output and layout files and, when a load target is configured, its tables."),
		mcp.WithBoolean("compile", mcp.Description("Compile the copybook first (default false)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunConversion)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent conversion runs, newest first. Pass runId to get the per-file results of one run."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
		mcp.WithString("runId", mcp.Description("Run ID (optional)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListRuns)

	s.mcp.AddTool(mcp.NewTool("inspect_target",
		mcp.WithDescription("List the tables and columns currently in the configured load target"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleInspectTarget)
}

func (s *Server) handlePreviewFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := req.GetString("table", "")
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	rows := req.GetInt("rows", 10)
	if rows <= 0 {
		rows = 10
	}
	preview, err := s.convert.Preview(ctx, table, rows)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", table, err)
	}
	return jsonResult(preview)
}

func (s *Server) handleRunConversion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		result *service.ConvertResult
		err    error
	)
	if req.GetBool("compile", false) {
		result, err = s.convert.Run(ctx, service.TriggerMCP)
	} else {
		result, err = s.convert.Convert(ctx, service.TriggerMCP)
	}
	if err != nil {
		return nil, fmt.Errorf("run conversion: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if runID := req.GetString("runId", ""); runID != "" {
		files, err := s.convert.RunFiles(runID)
		if err != nil {
			return nil, err
		}
		return jsonResult(files)
	}
	runs, err := s.convert.ListRuns(req.GetInt("limit", 20))
	if err != nil {
		return nil, err
	}
	return jsonResult(runs)
}

func (s *Server) handleInspectTarget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.convert.InspectTarget(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect target: %w", err)
	}
	return jsonResult(info)
}
