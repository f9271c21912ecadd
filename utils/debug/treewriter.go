// Package debug provides helpers for readable dumps of hierarchical data.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const indentStep = "  "

// TreeWriter accumulates an indented text rendering of a tree, one node per
// line. It is write-only, the result is read back with String.
type TreeWriter struct {
	w strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

// Line writes one formatted node at the given depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(&tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes a labeled text value at the given depth, quoting the value
// so control characters and surrounding whitespace stay visible.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	if value != "" {
		tw.w.WriteString(strconv.Quote(value))
	}
	tw.w.WriteByte('\n')
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString(indentStep)
	}
}
