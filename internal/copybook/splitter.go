package copybook

import (
	"regexp"
	"strings"

	"copyflat/internal/domain"
)

// ── Table splitting ────────────────────────────────────────
// A table starts at an `01 <name>` header and runs until the next header,
// a terminator line, or the end of the text. The terminator literals are a
// property of the source format: they must never appear as field content.

var tableHeader = regexp.MustCompile(`^01\s+([#\w-]+)`)

var terminators = []string{"TOTAL RECORD LENGTH", "UNIQUE KEY", "---"}

// TableBlock is the raw line block of one table.
type TableBlock struct {
	Name  string
	Mode  domain.TableMode
	Lines []string
}

// SplitTables segments copybook lines into per-table blocks, in source order.
// Tables without any line are dropped.
func SplitTables(lines []string) []TableBlock {
	var (
		blocks  []TableBlock
		name    string
		current []string
	)

	flush := func() bool {
		if name == "" || len(current) == 0 {
			return false
		}
		blocks = append(blocks, TableBlock{Name: name, Mode: ClassifyBlock(current), Lines: current})
		return true
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if m := tableHeader.FindStringSubmatch(line); m != nil {
			flush()
			name = CleanTableName(m[1])
			current = nil
			continue
		}

		if isTerminator(line) {
			// A terminator only closes a table that already holds lines.
			if flush() {
				name, current = "", nil
			}
			continue
		}

		if name != "" {
			current = append(current, raw)
		}
	}
	flush()

	return blocks
}

// ClassifyBlock decides the expansion mode of a block from its raw text.
func ClassifyBlock(lines []string) domain.TableMode {
	text := strings.Join(lines, " ")
	if strings.Contains(text, "-PE") || strings.Contains(text, "/") {
		return domain.ExpandedTable
	}
	return domain.DirectTable
}

// CleanTableName replaces hyphens with underscores and keeps everything else.
func CleanTableName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func isTerminator(line string) bool {
	for _, t := range terminators {
		if strings.HasPrefix(line, t) {
			return true
		}
	}
	return false
}
