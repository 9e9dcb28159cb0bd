package mapping

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ── SQLite Source ───────────────────────────────────────────
// Reads the mapping from a table inside a local SQLite database.

type sqliteSource struct{}

func init() { RegisterSource(&sqliteSource{}) }

func (s *sqliteSource) Spec() SourceSpec {
	return SourceSpec{
		Type:  "sqlite",
		Label: "SQLite Table",
		ConfigFields: []ConfigField{
			{Key: "path", Label: "Database Path", Required: true},
			{Key: "table", Label: "Table", Default: "mapping", Help: "Table holding table_name and flat_file_name"},
		},
	}
}

func (s *sqliteSource) Load(ctx context.Context, cfg SourceConfig) (*Table, error) {
	path, err := requiredPath(cfg)
	if err != nil {
		return nil, err
	}
	table := stringOpt(cfg, "table", "mapping")

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var data [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(header))
		ptrs := make([]any, len(header))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = v.String
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return FromRows(header, data)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
