package decode

import (
	"path/filepath"
	"strings"
)

// OutputExt is the extension of decoded output and layout files.
const OutputExt = ".TXT"

// OutputName derives the output file name for a flat file:
// "data/member_file-v2.dat" becomes "MEMBERFILEV2.TXT".
func OutputName(flatFile string) string {
	base := filepath.Base(strings.ReplaceAll(flatFile, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToUpper(strings.ReplaceAll(base, `"`, ""))

	parts := strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(capitalize(p))
	}
	return strings.ToUpper(b.String()) + OutputExt
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
