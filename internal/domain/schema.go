package domain

import (
	"fmt"
	"strings"
)

// TableMode tells the field expander which rule set applies to a table block.
type TableMode string

const (
	// DirectTable blocks only get void-group elision and single-field emission.
	DirectTable TableMode = "direct"
	// ExpandedTable blocks additionally expand slash repeats and occurs groups.
	ExpandedTable TableMode = "expanded"
)

// FieldSpec is one fixed-width field. Start and End are 1-indexed and inclusive.
type FieldSpec struct {
	Name      string `json:"name"`
	TypeLabel string `json:"typeLabel"`
	Width     int    `json:"width"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// TableSchema is the compiled, ordered field list of one table.
type TableSchema struct {
	Name   string      `json:"name"`
	Mode   TableMode   `json:"mode"`
	Fields []FieldSpec `json:"fields"`
}

// MaxEnd returns the largest end offset of the schema, or 0 when it has no fields.
func (t *TableSchema) MaxEnd() int {
	max := 0
	for _, f := range t.Fields {
		if f.End > max {
			max = f.End
		}
	}
	return max
}

// Validate checks that the fields start at 1 and follow each other with no gap or overlap.
// Widths may be zero but never negative.
func (t *TableSchema) Validate() error {
	next := 1
	for i, f := range t.Fields {
		if f.Start < 1 || f.Width < 0 || f.End < f.Start-1 {
			return fmt.Errorf("table %s field %d (%s): invalid offsets %d-%d width %d", t.Name, i, f.Name, f.Start, f.End, f.Width)
		}
		if f.Start != next {
			return fmt.Errorf("table %s field %d (%s): start %d, want %d", t.Name, i, f.Name, f.Start, next)
		}
		if f.Width != f.End-f.Start+1 {
			return fmt.Errorf("table %s field %d (%s): width %d does not match %d-%d", t.Name, i, f.Name, f.Width, f.Start, f.End)
		}
		next = f.End + 1
	}
	return nil
}

// NormalizeTableName is the key form used for catalog lookups.
func NormalizeTableName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "_")
}

// ── Catalog ────────────────────────────────────────────────
// All compiled tables of one copybook source, in declaration order.
// Built once, read-only afterwards.

// Catalog maps table names to their schemas while keeping declaration order.
type Catalog struct {
	order  []string
	tables map[string]*TableSchema
}

// NewCatalog builds a catalog. A later table with the same normalized name
// replaces the earlier one but keeps its position.
func NewCatalog(tables []TableSchema) *Catalog {
	c := &Catalog{tables: make(map[string]*TableSchema, len(tables))}
	for i := range tables {
		t := tables[i]
		key := NormalizeTableName(t.Name)
		if _, ok := c.tables[key]; !ok {
			c.order = append(c.order, key)
		}
		c.tables[key] = &t
	}
	return c
}

// Lookup returns the schema for a table name (case and hyphen insensitive).
func (c *Catalog) Lookup(name string) (*TableSchema, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.tables[NormalizeTableName(name)]
	return t, ok
}

// Tables returns the schemas in declaration order.
func (c *Catalog) Tables() []*TableSchema {
	if c == nil {
		return nil
	}
	out := make([]*TableSchema, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.tables[key])
	}
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
