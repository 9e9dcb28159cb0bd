package dbclient

import (
	"fmt"

	"copyflat/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// buildMySQLDSN constructs a MySQL DSN from a LoadTarget.
func buildMySQLDSN(t domain.LoadTarget) string {
	port := t.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?charset=utf8mb4
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4",
		t.Username, t.Password, t.Host, port, t.Database,
	)
	if t.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

var mysqlDialect = dialect{
	quote:       func(name string) string { return "`" + name + "`" },
	placeholder: func(int) string { return "?" },
}
