package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"copyflat/internal/decode"
	"copyflat/internal/domain"
)

// dialect carries the identifier quoting and placeholder style of a SQL engine.
type dialect struct {
	quote       func(name string) string
	placeholder func(i int) string // 1-based
}

// sqlLoader is the shared implementation for MySQL, Postgres, and SQLite.
type sqlLoader struct {
	driverName string
	dialect    dialect
	db         *sql.DB
}

// newSQLLoader opens a generic SQL loader.
func newSQLLoader(driverName, dsn string, d dialect) (*sqlLoader, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	return &sqlLoader{driverName: driverName, dialect: d, db: db}, nil
}

func (l *sqlLoader) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return l.db.PingContext(ctx)
}

var varcharLabel = regexp.MustCompile(`^VARCHAR\((\d+)\)$`)

// columnType maps a layout column to a SQL type. Group cells hold several joined
// members and zero-width labels are not valid everywhere, so both fall back to TEXT.
func columnType(c decode.LayoutRow) string {
	if c.IsGroup() {
		return "TEXT"
	}
	m := varcharLabel.FindStringSubmatch(c.TypeLabel)
	if m == nil || m[1] == "0" {
		return "TEXT"
	}
	return c.TypeLabel
}

func (l *sqlLoader) createTableSQL(table string, columns []decode.LayoutRow) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%s %s", l.dialect.quote(c.Name), columnType(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", l.dialect.quote(table), strings.Join(defs, ", "))
}

func (l *sqlLoader) insertSQL(table string, columns []decode.LayoutRow) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = l.dialect.quote(c.Name)
		marks[i] = l.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		l.dialect.quote(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func (l *sqlLoader) Write(ctx context.Context, table string, columns []decode.LayoutRow, rows [][]string, mode domain.LoadMode) (int, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("table %s has no columns", table)
	}
	if _, err := l.db.ExecContext(ctx, l.createTableSQL(table, columns)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", table, err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if mode == domain.LoadReplace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+l.dialect.quote(table)); err != nil {
			return 0, fmt.Errorf("clear target: %w", err)
		}
	}

	written := 0
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, l.insertSQL(table, columns))
		if err != nil {
			return 0, fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(columns))
		for i, row := range rows {
			for j := range args {
				if j < len(row) {
					args[j] = row[j]
				} else {
					args[j] = ""
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return 0, fmt.Errorf("insert row %d: %w", i, err)
			}
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (l *sqlLoader) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch l.driverName {
	case "sqlite":
		return l.introspectSQLite(ctx)
	default:
		return l.introspectInfoSchema(ctx)
	}
}

// introspectInfoSchema works for MySQL and Postgres via INFORMATION_SCHEMA.
func (l *sqlLoader) introspectInfoSchema(ctx context.Context) (*SchemaInfo, error) {
	query := `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME, ORDINAL_POSITION`
	if l.driverName == "postgres" {
		query = `SELECT table_name, column_name, data_type FROM information_schema.columns
		 WHERE table_schema = current_schema() ORDER BY table_name, ordinal_position`
	}
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	schema := &SchemaInfo{}
	for rows.Next() {
		var tbl string
		var ci ColumnInfo
		if err := rows.Scan(&tbl, &ci.Name, &ci.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if n := len(schema.Tables); n == 0 || schema.Tables[n-1].Name != tbl {
			schema.Tables = append(schema.Tables, TableInfo{Name: tbl})
		}
		last := &schema.Tables[len(schema.Tables)-1]
		last.Columns = append(last.Columns, ci)
	}
	return schema, rows.Err()
}

// introspectSQLite uses sqlite_master + PRAGMA table_info.
func (l *sqlLoader) introspectSQLite(ctx context.Context) (*SchemaInfo, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tableNames = append(tableNames, name)
	}
	rows.Close()

	schema := &SchemaInfo{}
	for _, tbl := range tableNames {
		pragmaRows, err := l.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", l.dialect.quote(tbl)))
		if err != nil {
			schema.Tables = append(schema.Tables, TableInfo{Name: tbl})
			continue
		}

		var cols []ColumnInfo
		for pragmaRows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dfltValue sql.NullString
			if err := pragmaRows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
				continue
			}
			cols = append(cols, ColumnInfo{Name: name, Type: colType})
		}
		pragmaRows.Close()

		schema.Tables = append(schema.Tables, TableInfo{Name: tbl, Columns: cols})
	}

	return schema, nil
}

func (l *sqlLoader) Close() error {
	return l.db.Close()
}
