package domain

// DatabaseDriver represents the type of database engine decoded rows are loaded into.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// LoadTarget holds the connection settings of the optional load target.
type LoadTarget struct {
	Driver   DatabaseDriver `json:"driver" yaml:"driver" toml:"driver"`
	Host     string         `json:"host" yaml:"host" toml:"host"` // hostname, file path (sqlite) or full mongodb:// URI
	Port     int            `json:"port" yaml:"port" toml:"port"` // 0 picks the driver default
	Database string         `json:"database" yaml:"database" toml:"database"`
	Username string         `json:"username" yaml:"username" toml:"username"`
	Password string         `json:"password" yaml:"password" toml:"password"`
	SSLMode  string         `json:"sslMode" yaml:"sslMode" toml:"sslMode"`
	Mode     LoadMode       `json:"mode" yaml:"mode" toml:"mode"`

	// PasswordSecret, when set, names where the password is kept: env:NAME or keychain:NAME.
	PasswordSecret string `json:"passwordSecret,omitempty" yaml:"passwordSecret,omitempty" toml:"passwordSecret,omitempty"`
}
