package mapping

import (
	"context"
	"fmt"

	"copyflat/internal/domain"
)

// ── Memory Source ───────────────────────────────────────────
// A literal list of entries under the "entries" key. Accepts []domain.TableFile
// or decoded JSON ([]any of {"table","file"} objects).

type memorySource struct{}

func init() { RegisterSource(&memorySource{}) }

func (s *memorySource) Spec() SourceSpec {
	return SourceSpec{
		Type:  "memory",
		Label: "Inline List",
		ConfigFields: []ConfigField{
			{Key: "entries", Label: "Entries", Required: true, Help: "List of {table, file} pairs"},
		},
	}
}

func (s *memorySource) Load(ctx context.Context, cfg SourceConfig) (*Table, error) {
	switch v := cfg["entries"].(type) {
	case []domain.TableFile:
		return NewTable(v), nil
	case []any:
		entries := make([]domain.TableFile, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %d: want object, got %T", i, item)
			}
			table, _ := m["table"].(string)
			file, _ := m["file"].(string)
			entries = append(entries, domain.TableFile{Table: table, FlatFile: file})
		}
		return NewTable(entries), nil
	case nil:
		return nil, fmt.Errorf("entries is required")
	default:
		return nil, fmt.Errorf("entries: unsupported type %T", v)
	}
}
