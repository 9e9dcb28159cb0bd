package dbclient

import (
	"copyflat/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteLoader creates a loader for a local SQLite file.
// Opens in WAL mode with busy timeout for concurrent access.
func newSQLiteLoader(t domain.LoadTarget) (*sqlLoader, error) {
	dsn := t.Host + "?_journal_mode=WAL&_busy_timeout=5000"
	return newSQLLoader("sqlite", dsn, sqliteDialect)
}

var sqliteDialect = dialect{
	quote:       postgresDialect.quote,
	placeholder: mysqlDialect.placeholder,
}
