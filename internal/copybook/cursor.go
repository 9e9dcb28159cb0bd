package copybook

import "strings"

// lineCursor is a peekable cursor over the lines of one table block.
// Every line is handed out trimmed.
type lineCursor struct {
	lines []string
	pos   int
}

func newLineCursor(lines []string) *lineCursor {
	return &lineCursor{lines: lines}
}

// Done reports whether every line has been consumed.
func (c *lineCursor) Done() bool { return c.pos >= len(c.lines) }

// Peek returns the next line without consuming it.
func (c *lineCursor) Peek() (string, bool) {
	if c.Done() {
		return "", false
	}
	return strings.TrimSpace(c.lines[c.pos]), true
}

// Next consumes and returns the next line.
func (c *lineCursor) Next() (string, bool) {
	line, ok := c.Peek()
	if ok {
		c.pos++
	}
	return line, ok
}

// SkipWhile consumes the contiguous run of lines matching pred and returns its length.
func (c *lineCursor) SkipWhile(pred func(string) bool) int {
	n := 0
	for line, ok := c.Peek(); ok && pred(line); line, ok = c.Peek() {
		c.pos++
		n++
	}
	return n
}

// TakeUntil consumes lines up to, not including, the first one matching stop.
func (c *lineCursor) TakeUntil(stop func(string) bool) []string {
	var run []string
	for line, ok := c.Peek(); ok && !stop(line); line, ok = c.Peek() {
		c.pos++
		run = append(run, line)
	}
	return run
}

func isLevel03(line string) bool { return strings.HasPrefix(line, "03 ") }

func isLevel01or02(line string) bool {
	return strings.HasPrefix(line, "02 ") || strings.HasPrefix(line, "01 ")
}
