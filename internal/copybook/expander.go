package copybook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"copyflat/internal/domain"
)

// ── Field expansion ────────────────────────────────────────
// Turns a table block into a contiguous, offset-addressed field list.
//
// Rules per declaration line, first match wins:
//   void 02 group     → skip it and its 03 children, emit nothing
//   type "T/n"        → n suffixed fields (not for names ending in PE)
//   02 "<name>PE(n)"  → occurs group: each 03 child repeated n times, child-major
//   anything else     → one field

// occursMarker ends the (cleaned) name of an occurs group.
const occursMarker = "PE"

var (
	declaration = regexp.MustCompile(`^(0[23])\s+([#\w-]+)\s*\(([^)]*)\)`)
	childDecl   = regexp.MustCompile(`^03\s+([#\w-]+)\s*\(([^)]*)\)`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
)

// Expansion is the compiled field list of one table block.
type Expansion struct {
	Fields []domain.FieldSpec
	// NextPos is one past the last occupied byte.
	NextPos int
}

// decl is one parsed declaration line.
type decl struct {
	level string
	name  string // cleaned
	typ   string // trimmed type expression
}

func parseDecl(line string) (decl, bool) {
	m := declaration.FindStringSubmatch(line)
	if m == nil {
		return decl{}, false
	}
	return decl{level: m[1], name: CleanFieldName(m[2]), typ: strings.TrimSpace(m[3])}, true
}

// isVoid reports whether a declaration carries no storage.
func (d decl) isVoid() bool {
	return d.level == "02" && (d.typ == "" || strings.HasPrefix(d.typ, "/*"))
}

// CleanFieldName strips every hyphen and underscore from a declared name.
func CleanFieldName(name string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

// ExpandFields compiles a table block according to its mode.
func ExpandFields(block TableBlock) Expansion {
	switch block.Mode {
	case domain.ExpandedTable:
		return expandRepeats(block.Lines)
	case domain.DirectTable:
		return expandDirect(block.Lines)
	default:
		panic(fmt.Sprintf("copybook: unknown table mode %q", block.Mode))
	}
}

// layout hands out consecutive offsets starting at 1.
type layout struct {
	fields []domain.FieldSpec
	pos    int
}

func newLayout() *layout { return &layout{pos: 1} }

func (l *layout) place(name string, ti TypeInfo) {
	start := l.pos
	end := start + ti.Width - 1
	l.fields = append(l.fields, domain.FieldSpec{
		Name:      name,
		TypeLabel: ti.Label,
		Width:     ti.Width,
		Start:     start,
		End:       end,
	})
	l.pos = end + 1
}

// placeRun places count fields name1..nameCount of the same type.
func (l *layout) placeRun(name string, ti TypeInfo, count int) {
	for i := 1; i <= count; i++ {
		l.place(name+strconv.Itoa(i), ti)
	}
}

func (l *layout) result() Expansion {
	return Expansion{Fields: l.fields, NextPos: l.pos}
}

// expandDirect applies void-group elision and single-field emission only.
func expandDirect(lines []string) Expansion {
	out := newLayout()
	cur := newLineCursor(lines)

	for !cur.Done() {
		line, _ := cur.Next()
		d, ok := parseDecl(line)
		if !ok || d.isVoid() {
			if !ok && !strings.HasPrefix(line, "02 ") {
				continue
			}
			cur.SkipWhile(isLevel03)
			continue
		}
		out.place(d.name, MapType(d.typ))
	}
	return out.result()
}

// expandRepeats applies the full rule set, including slash repeats and occurs groups.
func expandRepeats(lines []string) Expansion {
	out := newLayout()
	cur := newLineCursor(lines)

	for !cur.Done() {
		line, _ := cur.Next()
		d, ok := parseDecl(line)
		switch {
		case !ok && strings.HasPrefix(line, "02 "), ok && d.isVoid():
			cur.SkipWhile(isLevel03)

		case !ok:
			// comments, blanks and malformed 03 lines carry nothing

		case strings.Contains(d.typ, "/") && !strings.HasSuffix(d.name, occursMarker):
			base, count := splitRepeat(d.typ)
			out.placeRun(d.name, MapType(base), count)

		case d.level == "02" && strings.HasSuffix(d.name, occursMarker) && digitsOnly.MatchString(d.typ):
			times, _ := strconv.Atoi(d.typ)
			expandOccurs(out, cur.TakeUntil(isLevel01or02), times)

		default:
			out.place(d.name, MapType(d.typ))
		}
	}
	return out.result()
}

// expandOccurs lays out the children of an occurs group child-major:
// every instance of one child precedes the first instance of the next.
func expandOccurs(out *layout, run []string, times int) {
	for _, line := range run {
		m := childDecl.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := CleanFieldName(m[1])
		typ := strings.TrimSpace(m[2])

		if strings.Contains(typ, "/") {
			base, inner := splitRepeat(typ)
			out.placeRun(name, MapType(base), times*inner)
			continue
		}
		out.placeRun(name, MapType(typ), times)
	}
}

// splitRepeat splits "T/n" on the first slash. An empty or unparseable count is 1.
func splitRepeat(typ string) (string, int) {
	base, count, _ := strings.Cut(typ, "/")
	count = strings.TrimSpace(count)
	if count == "" {
		return base, 1
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return base, 1
	}
	return base, n
}
