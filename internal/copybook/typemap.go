package copybook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ── Type mapping ───────────────────────────────────────────
// Copybook type tokens: N<int>.<frac> (decimal), A<n> / N<n> (alphanumeric / numeral).
// Anything else degrades to a 255-wide label that occupies a single byte.

// DefaultTypeLabel is the label given to empty, commented or unrecognized type tokens.
const DefaultTypeLabel = "VARCHAR(255)"

// defaultWidth is the storage width of an unrecognized token. It deliberately
// differs from the 255 carried by DefaultTypeLabel.
const defaultWidth = 1

var (
	decimalToken = regexp.MustCompile(`^N(\d+)\.(\d+)`)
	simpleToken  = regexp.MustCompile(`^[AN](\d+)`)
)

// TypeInfo is the mapped form of a type token.
type TypeInfo struct {
	Label string
	Width int
	// Recognized is false when the token fell through to the default.
	Recognized bool
}

// MapType converts a copybook type token into a type label and a storage width.
func MapType(token string) TypeInfo {
	token = strings.TrimSpace(token)
	if m := decimalToken.FindStringSubmatch(token); m != nil {
		return varchar(atoi(m[1]) + atoi(m[2]))
	}
	if m := simpleToken.FindStringSubmatch(token); m != nil {
		return varchar(atoi(m[1]))
	}
	return TypeInfo{Label: DefaultTypeLabel, Width: defaultWidth}
}

func varchar(n int) TypeInfo {
	return TypeInfo{Label: fmt.Sprintf("VARCHAR(%d)", n), Width: n, Recognized: true}
}

// atoi only sees \d+ matches; overflow degrades to 0.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
