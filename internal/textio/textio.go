// Package textio turns raw bytes into text with a best-effort encoding policy.
// Decoding never fails: irregular byte sequences are substituted, reinterpreted or dropped.
package textio

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Policy selects what happens to bytes that are not valid UTF-8.
type Policy int

const (
	// Replace substitutes U+FFFD for every invalid byte, so character positions survive.
	Replace Policy = iota
	// Latin1 re-decodes the whole input as ISO-8859-1 when it is not valid UTF-8.
	Latin1
	// Ignore drops invalid bytes.
	Ignore
)

// Decode converts b to a string under the given policy.
func Decode(b []byte, p Policy) string {
	if utf8.Valid(b) {
		return string(b)
	}
	switch p {
	case Latin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err != nil {
			return substitute(b, string(utf8.RuneError))
		}
		return string(out)
	case Ignore:
		return substitute(b, "")
	default:
		return substitute(b, string(utf8.RuneError))
	}
}

// substitute replaces each invalid byte individually.
func substitute(b []byte, repl string) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteString(repl)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}

// ReadFile reads a whole file and decodes it under p.
func ReadFile(path string, p Policy) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(Decode(data, p), "\ufeff"), nil
}

// LineReader streams lines of any length and decodes each one under a policy.
type LineReader struct {
	r      *bufio.Reader
	policy Policy
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader, p Policy) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024), policy: p}
}

// Next returns the next line without its line terminator.
// It returns io.EOF once the input is exhausted; a final unterminated line is still returned.
func (lr *LineReader) Next() (string, error) {
	raw, err := lr.r.ReadBytes('\n')
	if len(raw) == 0 && err != nil {
		return "", err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	raw = trimEOL(raw)
	return Decode(raw, lr.policy), nil
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
