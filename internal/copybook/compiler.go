// Package copybook compiles fixed-width copybook text into table schemas.
//
// The compiler splits the text into per-table blocks, decides for each block
// whether repeat/occurs expansion applies, and flattens the declarations into
// a contiguous, 1-indexed field list.
package copybook

import (
	"strings"

	"copyflat/internal/domain"
)

// CompiledTable is one table schema plus the diagnostic cursor of its expansion.
type CompiledTable struct {
	domain.TableSchema
	NextPos int
}

// Compile compiles copybook text into table schemas in source order.
// Compilation never fails: malformed declarations degrade or are skipped.
func Compile(text string) []CompiledTable {
	blocks := SplitTables(SplitLines(text))
	out := make([]CompiledTable, 0, len(blocks))
	for _, b := range blocks {
		exp := ExpandFields(b)
		out = append(out, CompiledTable{
			TableSchema: domain.TableSchema{Name: b.Name, Mode: b.Mode, Fields: exp.Fields},
			NextPos:     exp.NextPos,
		})
	}
	return out
}

// CompileCatalog compiles copybook text straight into a catalog.
func CompileCatalog(text string) *domain.Catalog {
	return domain.NewCatalog(Schemas(Compile(text)))
}

// Schemas drops the diagnostics of compiled tables.
func Schemas(tables []CompiledTable) []domain.TableSchema {
	out := make([]domain.TableSchema, len(tables))
	for i, t := range tables {
		out[i] = t.TableSchema
	}
	return out
}

// SplitLines splits text on \n, \r\n and lone \r.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
