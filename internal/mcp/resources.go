package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"copyflat/internal/domain"
	"copyflat/internal/storage"
)

const (
	tablesURI      = "copyflat://tables"
	tableURIPrefix = "copyflat://table/"
)

func (s *Server) registerResources() {
	// ── copyflat://tables ──────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		tablesURI,
		"Catalog Tables",
		mcp.WithMIMEType("application/json"),
	), s.handleTablesResource)

	// ── copyflat://table/{name} ────────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			tableURIPrefix+"{name}",
			"Table Layout",
		),
		s.handleTableResource,
	)
}

// summarizeCatalog lists the catalog tables without their fields.
func summarizeCatalog(cat *domain.Catalog) []storage.TableSummary {
	out := make([]storage.TableSummary, 0, cat.Len())
	for _, t := range cat.Tables() {
		out = append(out, storage.TableSummary{
			Name:         t.Name,
			Mode:         t.Mode,
			Fields:       len(t.Fields),
			RecordLength: t.MaxEnd(),
		})
	}
	return out
}

func (s *Server) handleTablesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cat, err := s.convert.Catalog()
	if err != nil {
		return nil, err
	}
	return jsonResource(tablesURI, summarizeCatalog(cat))
}

func (s *Server) handleTableResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name := tableNameFromURI(uri)
	if name == "" {
		return nil, fmt.Errorf("could not extract table name from URI: %s", uri)
	}
	desc, err := s.convert.DescribeTable(name)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, desc)
}

// tableNameFromURI extracts the name from "copyflat://table/{name}".
func tableNameFromURI(uri string) string {
	name, ok := strings.CutPrefix(uri, tableURIPrefix)
	if !ok {
		return ""
	}
	return strings.Trim(name, "/")
}
