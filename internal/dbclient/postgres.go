package dbclient

import (
	"fmt"
	"strconv"
	"strings"

	"copyflat/internal/domain"

	_ "github.com/lib/pq"
)

// buildPostgresDSN constructs a Postgres connection string from a LoadTarget.
func buildPostgresDSN(t domain.LoadTarget) string {
	port := t.Port
	if port == 0 {
		port = 5432
	}
	sslMode := t.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		t.Host, port, t.Username, t.Password, t.Database, sslMode,
	)
}

var postgresDialect = dialect{
	quote:       func(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` },
	placeholder: func(i int) string { return "$" + strconv.Itoa(i) },
}
