package decode

import (
	"strings"

	"github.com/samber/lo"

	"copyflat/internal/domain"
)

// GroupSuffix marks the display name of a repeating-group column.
const GroupSuffix = "_PE"

// Column is one output column: either a scalar field or a repeating group of
// fields that share a base name and differ by a numeric suffix.
type Column struct {
	Base    string
	Members []domain.FieldSpec
}

// IsGroup reports whether the column has more than one member.
func (c Column) IsGroup() bool { return len(c.Members) > 1 }

// DisplayName is the header name of the column.
func (c Column) DisplayName() string {
	if c.IsGroup() {
		return c.Base + GroupSuffix
	}
	return c.Base
}

// Layout describes the column's combined offset range.
func (c Column) Layout() LayoutRow {
	first := lo.MinBy(c.Members, func(a, b domain.FieldSpec) bool { return a.Start < b.Start })
	last := lo.MaxBy(c.Members, func(a, b domain.FieldSpec) bool { return a.End > b.End })
	return LayoutRow{
		Name:      c.DisplayName(),
		TypeLabel: c.Members[0].TypeLabel,
		Start:     first.Start,
		End:       last.End,
		Width:     lo.SumBy(c.Members, func(f domain.FieldSpec) int { return f.Width }),
		Members:   len(c.Members),
	}
}

// BaseName strips a trailing run of digits. A name made only of digits is its own base.
func BaseName(name string) string {
	base := strings.TrimRight(name, "0123456789")
	if base == "" {
		return name
	}
	return base
}

// Regroup clusters fields by base name, keeping the first-seen order of bases
// and the field order inside each cluster.
func Regroup(fields []domain.FieldSpec) []Column {
	var cols []Column
	index := make(map[string]int)
	for _, f := range fields {
		base := BaseName(f.Name)
		i, ok := index[base]
		if !ok {
			i = len(cols)
			index[base] = i
			cols = append(cols, Column{Base: base})
		}
		cols[i].Members = append(cols[i].Members, f)
	}
	return cols
}
