// Package schemafile persists compiled table schemas and reads them back.
//
// Two paired artifacts are written per schema set: a table-definition file
// (CREATE TABLE statements) and a position-metadata file carrying every
// field's offsets. The metadata file is authoritative for decoding.
package schemafile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"copyflat/internal/domain"
)

// WriteDDL writes one CREATE TABLE block per schema, each followed by a blank line.
func WriteDDL(w io.Writer, tables []domain.TableSchema) error {
	bw := bufio.NewWriter(w)
	for _, t := range tables {
		cols := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			cols[i] = f.Name + " " + f.TypeLabel
		}
		fmt.Fprintf(bw, "CREATE TABLE %s (\n    %s\n);\n\n", t.Name, strings.Join(cols, ",\n    "))
	}
	return bw.Flush()
}

var (
	createTable = regexp.MustCompile(`(?i)^CREATE TABLE\s+(?:\w+\.)?(["\w\-#]+)`)
	ddlColumn   = regexp.MustCompile(`(?i)^(["\w#-]+)\s+VARCHAR\((\d+)\)`)
)

// ReadDDL rebuilds schemas from a table-definition file. Widths come from the
// VARCHAR length and offsets are assigned sequentially, so default-typed
// fields read back 255 wide. Use ReadMetadata when exact widths matter.
// Table names are upper-cased; column names lose '_' and '-' and are upper-cased.
func ReadDDL(r io.Reader) ([]domain.TableSchema, error) {
	var (
		tables []domain.TableSchema
		cur    = -1
		pos    int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if m := createTable.FindStringSubmatch(line); m != nil {
			name := strings.ReplaceAll(strings.ToUpper(strings.Trim(m[1], `"`)), "-", "_")
			tables = append(tables, domain.TableSchema{Name: name})
			cur = len(tables) - 1
			pos = 1
			continue
		}
		if cur < 0 || line == "" || strings.HasPrefix(line, ");") {
			continue
		}

		m := ddlColumn.FindStringSubmatch(strings.TrimRight(line, ","))
		if m == nil {
			continue
		}
		width, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("table %s: column %s: %w", tables[cur].Name, m[1], err)
		}
		tables[cur].Fields = append(tables[cur].Fields, domain.FieldSpec{
			Name:      normalizeColumn(strings.Trim(m[1], `"`)),
			TypeLabel: fmt.Sprintf("VARCHAR(%d)", width),
			Width:     width,
			Start:     pos,
			End:       pos + width - 1,
		})
		pos += width
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan ddl: %w", err)
	}
	return tables, nil
}

func normalizeColumn(name string) string {
	return strings.ToUpper(strings.NewReplacer("_", "", "-", "").Replace(name))
}
