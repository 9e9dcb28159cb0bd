package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"copyflat/internal/domain"
)

// ErrCatalogNotFound is returned when no catalog was saved for a source.
var ErrCatalogNotFound = errors.New("no catalog saved for source")

// TableSummary is one persisted catalog table without its fields.
type TableSummary struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Mode         domain.TableMode `json:"mode"`
	Fields       int              `json:"fields"`
	RecordLength int              `json:"recordLength"`
	CompiledAt   time.Time        `json:"compiledAt"`
}

// CatalogStore persists compiled catalogs keyed by their copybook source path.
type CatalogStore struct {
	db *DB
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// SaveCatalog replaces the catalog stored for source.
func (s *CatalogStore) SaveCatalog(source string, tables []*domain.TableSchema) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM catalog_fields WHERE table_id IN (SELECT id FROM catalog_tables WHERE source = ?)`, source,
	); err != nil {
		return fmt.Errorf("clear fields: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM catalog_tables WHERE source = ?`, source); err != nil {
		return fmt.Errorf("clear tables: %w", err)
	}

	now := time.Now()
	for i, t := range tables {
		id := uuid.New().String()
		if _, err := tx.Exec(
			`INSERT INTO catalog_tables (id, source, name, mode, position, record_length, compiled_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, source, t.Name, t.Mode, i, t.MaxEnd(), now,
		); err != nil {
			return fmt.Errorf("insert table %s: %w", t.Name, err)
		}
		for j, f := range t.Fields {
			if _, err := tx.Exec(
				`INSERT INTO catalog_fields (table_id, position, name, type_label, width, start_pos, end_pos)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, j, f.Name, f.TypeLabel, f.Width, f.Start, f.End,
			); err != nil {
				return fmt.Errorf("insert field %s.%s: %w", t.Name, f.Name, err)
			}
		}
	}
	return tx.Commit()
}

// ListTables returns the tables stored for source in declaration order.
func (s *CatalogStore) ListTables(source string) ([]TableSummary, error) {
	rows, err := s.db.conn.Query(
		`SELECT t.id, t.name, t.mode, t.record_length, t.compiled_at,
		 (SELECT COUNT(*) FROM catalog_fields f WHERE f.table_id = t.id)
		 FROM catalog_tables t WHERE t.source = ? ORDER BY t.position ASC`, source,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableSummary
	for rows.Next() {
		var ts TableSummary
		if err := rows.Scan(&ts.ID, &ts.Name, &ts.Mode, &ts.RecordLength, &ts.CompiledAt, &ts.Fields); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// LoadCatalog rebuilds the catalog stored for source.
func (s *CatalogStore) LoadCatalog(source string) (*domain.Catalog, error) {
	summaries, err := s.ListTables(source)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, source)
	}

	tables := make([]domain.TableSchema, 0, len(summaries))
	for _, ts := range summaries {
		fields, err := s.loadFields(ts.ID)
		if err != nil {
			return nil, fmt.Errorf("load fields of %s: %w", ts.Name, err)
		}
		tables = append(tables, domain.TableSchema{Name: ts.Name, Mode: ts.Mode, Fields: fields})
	}
	return domain.NewCatalog(tables), nil
}

func (s *CatalogStore) loadFields(tableID string) ([]domain.FieldSpec, error) {
	rows, err := s.db.conn.Query(
		`SELECT name, type_label, width, start_pos, end_pos
		 FROM catalog_fields WHERE table_id = ? ORDER BY position ASC`, tableID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []domain.FieldSpec
	for rows.Next() {
		var f domain.FieldSpec
		if err := rows.Scan(&f.Name, &f.TypeLabel, &f.Width, &f.Start, &f.End); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
