package schemafile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"copyflat/internal/domain"
)

const (
	tableMarker    = "#TABLE "
	metadataHeader = "FieldName|DataType|Start|End|Width"
)

// ErrNotContiguous is returned when read-back offsets leave a gap or overlap.
var ErrNotContiguous = errors.New("field offsets are not contiguous")

// WriteMetadata writes the position-metadata artifact: per table a marker line,
// the column header, one pipe-delimited row per field and a blank line.
func WriteMetadata(w io.Writer, tables []domain.TableSchema) error {
	bw := bufio.NewWriter(w)
	for _, t := range tables {
		fmt.Fprintf(bw, "%s%s\n%s\n", tableMarker, t.Name, metadataHeader)
		for _, f := range t.Fields {
			fmt.Fprintf(bw, "%s|%s|%d|%d|%d\n", f.Name, f.TypeLabel, f.Start, f.End, f.Width)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// ReadMetadata rebuilds schemas from a position-metadata artifact.
// Every table is checked for contiguous offsets.
func ReadMetadata(r io.Reader, mode domain.TableMode) ([]domain.TableSchema, error) {
	var (
		tables []domain.TableSchema
		cur    = -1
		lineNo int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		switch {
		case strings.HasPrefix(line, tableMarker):
			tables = append(tables, domain.TableSchema{
				Name: strings.TrimSpace(strings.TrimPrefix(line, tableMarker)),
				Mode: mode,
			})
			cur = len(tables) - 1
		case line == "":
			cur = -1
		case line == metadataHeader:
		case cur < 0:
			return nil, fmt.Errorf("line %d: field row outside a table", lineNo)
		default:
			f, err := parseFieldRow(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			tables[cur].Fields = append(tables[cur].Fields, f)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan metadata: %w", err)
	}

	for i := range tables {
		if err := tables[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotContiguous, err)
		}
	}
	return tables, nil
}

func parseFieldRow(line string) (domain.FieldSpec, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 5 {
		return domain.FieldSpec{}, fmt.Errorf("want 5 columns, got %d: %q", len(parts), line)
	}
	nums := make([]int, 3)
	for i, s := range parts[2:] {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return domain.FieldSpec{}, fmt.Errorf("field %s: %w", parts[0], err)
		}
		nums[i] = n
	}
	return domain.FieldSpec{
		Name:      parts[0],
		TypeLabel: parts[1],
		Start:     nums[0],
		End:       nums[1],
		Width:     nums[2],
	}, nil
}
