package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("check_layout",
		mcp.WithPromptDescription("Check that a table's copybook layout matches the records of its flat file"),
		mcp.WithArgument("table",
			mcp.ArgumentDescription("Table to check"),
			mcp.RequiredArgument(),
		),
	), s.handleCheckLayoutPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("convert_all",
		mcp.WithPromptDescription("Compile the copybook, convert every mapped file and report problems"),
	), s.handleConvertAllPrompt)
}

func (s *Server) handleCheckLayoutPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	table := req.Params.Arguments["table"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Check the layout of %s", table),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Check the layout of table "%s". Follow these steps:

1. Use describe_table to read its fields and output columns
2. Use preview_file to decode the first records of its mapped flat file
3. Look for values that straddle two fields, numeric fields holding letters, or a record length that differs from the layout
4. Report each suspicious field with its start, end and width`, table),
				},
			},
		},
	}, nil
}

func (s *Server) handleConvertAllPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Compile and convert everything",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Convert all flat files. Follow these steps:

1. Use compile_copybook and check that every expected table is listed
2. Use run_conversion
3. For every file result with a skip reason or an error, explain the cause (unknown table, missing file, empty schema)
4. Use list_runs to compare with the previous run`,
				},
			},
		},
	}, nil
}
