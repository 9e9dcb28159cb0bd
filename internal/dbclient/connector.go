package dbclient

import (
	"context"
	"fmt"

	"copyflat/internal/decode"
	"copyflat/internal/domain"
)

// SchemaInfo describes the tables present in a load target.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// TableInfo describes a table/collection.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes a column/field.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Loader writes decoded rows into an external database. It satisfies etl.Destination.
type Loader interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Write creates the target table from columns when needed and inserts rows.
	// In replace mode existing rows are removed first.
	Write(ctx context.Context, table string, columns []decode.LayoutRow, rows [][]string, mode domain.LoadMode) (int, error)

	// Introspect returns the tables of the target.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// Close releases the connection.
	Close() error
}

// NewLoader creates a Loader for the given target. groupDelim is the delimiter
// joining the members of group cells; document targets split on it.
func NewLoader(target domain.LoadTarget, groupDelim string) (Loader, error) {
	switch target.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteLoader(target)
	case domain.DatabaseDriverMySQL:
		return newSQLLoader("mysql", buildMySQLDSN(target), mysqlDialect)
	case domain.DatabaseDriverPostgres:
		return newSQLLoader("postgres", buildPostgresDSN(target), postgresDialect)
	case domain.DatabaseDriverMongoDB:
		return newMongoLoader(target, groupDelim)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", target.Driver)
	}
}
