// Package mapping loads the association between copybook tables and the flat data files
// that hold their records.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"copyflat/internal/domain"
)

// Required mapping columns after header normalization.
const (
	ColTableName    = "table_name"
	ColFlatFileName = "flat_file_name"
)

// ErrMissingColumns is returned when the mapping document lacks a required column.
var ErrMissingColumns = errors.New("mapping is missing required columns")

// Table is a loaded mapping. It implements domain.MappingSource.
type Table struct {
	entries []domain.TableFile
	index   map[string]string
}

var _ domain.MappingSource = (*Table)(nil)

// NewTable builds a mapping from entries, normalizing table names.
// The first file mapped to a table wins on Lookup; Entries keeps every row.
func NewTable(entries []domain.TableFile) *Table {
	t := &Table{index: make(map[string]string, len(entries))}
	for _, e := range entries {
		e.Table = domain.NormalizeTableName(e.Table)
		e.FlatFile = strings.TrimSpace(e.FlatFile)
		t.entries = append(t.entries, e)
		if e.Table == "" {
			continue
		}
		if _, ok := t.index[e.Table]; !ok {
			t.index[e.Table] = e.FlatFile
		}
	}
	return t
}

// Lookup returns the flat file mapped to table.
func (t *Table) Lookup(table string) (string, bool) {
	f, ok := t.index[domain.NormalizeTableName(table)]
	return f, ok
}

// Entries returns the mapping rows in document order.
func (t *Table) Entries() []domain.TableFile {
	out := make([]domain.TableFile, len(t.entries))
	copy(out, t.entries)
	return out
}

// NormalizeHeader is the column-name form used to find required columns.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ReplaceAll(h, "-", "_")
}

// FromRows builds a mapping from a header row and data rows. Extra columns are ignored;
// short rows read missing cells as empty.
func FromRows(header []string, rows [][]string) (*Table, error) {
	cols := make(map[string]int, len(header))
	found := make([]string, 0, len(header))
	for i, h := range header {
		n := NormalizeHeader(strings.TrimPrefix(h, "\ufeff"))
		found = append(found, n)
		if _, ok := cols[n]; !ok {
			cols[n] = i
		}
	}

	var missing []string
	for _, req := range []string{ColTableName, ColFlatFileName} {
		if _, ok := cols[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: need %s, found %s", ErrMissingColumns,
			strings.Join(missing, ", "), strings.Join(found, ", "))
	}

	ti, fi := cols[ColTableName], cols[ColFlatFileName]
	entries := make([]domain.TableFile, 0, len(rows))
	for _, r := range rows {
		if isEmptyRow(r) {
			continue
		}
		entries = append(entries, domain.TableFile{Table: cell(r, ti), FlatFile: cell(r, fi)})
	}
	return NewTable(entries), nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
