// Package mcpserver exposes copybook compilation and flat-file conversion as MCP tools.
package mcpserver

import (
	"encoding/json"
	"fmt"
	"log"

	"copyflat/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for copyflat.
// It exposes tools, resources, and prompts so AI agents can inspect layouts and run conversions.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter
	convert *service.ConvertService
}

// Deps holds the dependencies passed from the app layer to the MCP server.
type Deps struct {
	Emitter service.EventEmitter
	Convert *service.ConvertService
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.LogEmitter{}
	}
	s := &Server{
		emitter: emitter,
		convert: deps.Convert,
	}

	s.mcp = server.NewMCPServer(
		"copyflat-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerCatalogTools()
	s.registerConvertTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCP returns the underlying server, for in-process clients.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// jsonResource serializes v into a single JSON resource content.
func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func boolPtr(v bool) *bool { return &v }
