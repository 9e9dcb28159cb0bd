// Package decode turns fixed-width records into delimited rows using a compiled table schema.
package decode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"copyflat/internal/domain"
	"copyflat/internal/textio"
)

// Default delimiters; both are chosen to be absent from real record data.
const (
	DefaultFieldDelimiter = "¦"
	DefaultGroupDelimiter = "§"
)

var (
	// ErrEmptySchema is returned for a table without fields.
	ErrEmptySchema = errors.New("schema has no fields")
	// ErrDelimiters is returned when the delimiters are empty or identical.
	ErrDelimiters = errors.New("field and group delimiters must be non-empty and distinct")
)

// Decoder decodes raw lines of one table. It is read-only after construction
// and safe for concurrent use.
type Decoder struct {
	table      *domain.TableSchema
	columns    []Column
	maxEnd     int
	fieldDelim string
	groupDelim string
}

// NewDecoder prepares a decoder for table.
func NewDecoder(table *domain.TableSchema, fieldDelim, groupDelim string) (*Decoder, error) {
	if fieldDelim == "" || groupDelim == "" || fieldDelim == groupDelim {
		return nil, ErrDelimiters
	}
	if table == nil || len(table.Fields) == 0 {
		return nil, ErrEmptySchema
	}
	return &Decoder{
		table:      table,
		columns:    Regroup(table.Fields),
		maxEnd:     table.MaxEnd(),
		fieldDelim: fieldDelim,
		groupDelim: groupDelim,
	}, nil
}

// Table returns the schema the decoder was built from.
func (d *Decoder) Table() *domain.TableSchema { return d.table }

// Header returns the display names of the output columns.
func (d *Decoder) Header() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.DisplayName()
	}
	return out
}

// DecodeLine slices one record into cells. Short records are padded with
// spaces; characters past the schema's last offset are never read.
func (d *Decoder) DecodeLine(line string) []string {
	rec := []rune(strings.TrimRight(line, "\r\n"))
	if len(rec) < d.maxEnd {
		rec = append(rec, []rune(strings.Repeat(" ", d.maxEnd-len(rec)))...)
	}

	cells := make([]string, len(d.columns))
	for i, c := range d.columns {
		if !c.IsGroup() {
			cells[i] = slice(rec, c.Members[0])
			continue
		}
		parts := make([]string, len(c.Members))
		for j, m := range c.Members {
			parts[j] = slice(rec, m)
		}
		cells[i] = strings.Join(parts, d.groupDelim)
	}
	return cells
}

func slice(rec []rune, f domain.FieldSpec) string {
	start, end := max(f.Start-1, 0), min(f.End, len(rec))
	if end <= start {
		return ""
	}
	return strings.TrimSpace(string(rec[start:end]))
}

// FormatRow joins cells with the field delimiter.
func (d *Decoder) FormatRow(cells []string) string {
	return strings.Join(cells, d.fieldDelim)
}

// RowSink receives every decoded row of a stream.
type RowSink func(cells []string) error

// DecodeStream writes the header and then one row per input line, in input order.
// sink, when non-nil, also receives every row. It returns the number of records decoded.
func (d *Decoder) DecodeStream(ctx context.Context, r io.Reader, w io.Writer, sink RowSink) (int, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(d.FormatRow(d.Header()) + "\n"); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	lr := textio.NewLineReader(r, textio.Replace)
	n := 0
	for {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read record %d: %w", n+1, err)
		}

		cells := d.DecodeLine(line)
		if _, err := bw.WriteString(d.FormatRow(cells) + "\n"); err != nil {
			return n, fmt.Errorf("write record %d: %w", n+1, err)
		}
		if sink != nil {
			if err := sink(cells); err != nil {
				return n, fmt.Errorf("sink record %d: %w", n+1, err)
			}
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flush output: %w", err)
	}
	return n, nil
}

// ── Layout ─────────────────────────────────────────────────

// LayoutRow describes one output column. It is descriptive only and never
// consulted while decoding.
type LayoutRow struct {
	Name      string `json:"name"`
	TypeLabel string `json:"typeLabel"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Width     int    `json:"width"`
	Members   int    `json:"members"`
}

// IsGroup reports whether the column carries several members joined by the group delimiter.
func (l LayoutRow) IsGroup() bool { return l.Members > 1 }

// Layout returns one row per output column.
func (d *Decoder) Layout() []LayoutRow {
	out := make([]LayoutRow, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Layout()
	}
	return out
}

// WriteLayout writes the layout artifact using the field delimiter.
func (d *Decoder) WriteLayout(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(d.FormatRow([]string{"FieldName", "DataType", "Start", "End", "Width"}) + "\n")
	for _, l := range d.Layout() {
		bw.WriteString(d.FormatRow([]string{
			l.Name, l.TypeLabel, strconv.Itoa(l.Start), strconv.Itoa(l.End), strconv.Itoa(l.Width),
		}) + "\n")
	}
	return bw.Flush()
}
