package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"copyflat/internal/copybook"
)

func (s *Server) registerCatalogTools() {
	s.mcp.AddTool(mcp.NewTool("compile_copybook",
		mcp.WithDescription("Compile the configured copybook, rewrite the schema artifacts and persist the catalog. Returns one summary per table."),
	), s.handleCompileCopybook)

	s.mcp.AddTool(mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables of the current catalog with their mode, field count and record length"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListTables)

	s.mcp.AddTool(mcp.NewTool("describe_table",
		mcp.WithDescription("Show a table's fields (name, type, start, end, width) and the columns of its converted output"),
		mcp.WithString("table", mcp.Description("Table name (case and hyphen insensitive)"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleDescribeTable)

	s.mcp.AddTool(mcp.NewTool("decode_record",
		mcp.WithDescription("Decode literal fixed-width record lines against a catalog table, or against a copybook snippet when one is given"),
		mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
		mcp.WithString("records", mcp.Description("One or more record lines separated by newlines"), mcp.Required()),
		mcp.WithString("copybook", mcp.Description("Optional copybook text to compile instead of using the catalog")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleDecodeRecord)
}

func (s *Server) handleCompileCopybook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.convert.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile copybook: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleListTables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat, err := s.convert.Catalog()
	if err != nil {
		return nil, err
	}
	return jsonResult(summarizeCatalog(cat))
}

func (s *Server) handleDescribeTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := req.GetString("table", "")
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	desc, err := s.convert.DescribeTable(table)
	if err != nil {
		return nil, err
	}
	return jsonResult(desc)
}

func (s *Server) handleDecodeRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := req.GetString("table", "")
	records := req.GetString("records", "")
	if table == "" || records == "" {
		return nil, fmt.Errorf("table and records are required")
	}
	lines := copybook.SplitLines(records)

	if text := req.GetString("copybook", ""); strings.TrimSpace(text) != "" {
		preview, err := s.convert.DecodeWith(copybook.CompileCatalog(text), table, lines)
		if err != nil {
			return nil, err
		}
		return jsonResult(preview)
	}

	preview, err := s.convert.DecodeLines(table, lines)
	if err != nil {
		return nil, err
	}
	return jsonResult(preview)
}
