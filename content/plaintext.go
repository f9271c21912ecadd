package content

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements whose end contributes a line break to the flattened text.
var blockAtoms = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Blockquote: true,
}

// flattenText derives a readable plain-text rendering from the rewritten body
// tree: scripts and styles contribute nothing, <br> and closed block elements
// become line breaks, everything else is just text. An empty result is fine -
// some chapters are all illustrations.
func flattenText(body *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br:
				sb.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockAtoms[n.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	walk(body)
	return normalizeWhitespace(sb.String())
}

// normalizeWhitespace collapses runs of horizontal whitespace to one space,
// drops spaces hugging line breaks, limits consecutive line breaks to two and
// trims the ends.
func normalizeWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	pendingSpace := false
	newlines := 0
	empty := true

	flushSpace := func() {
		if pendingSpace && !empty && newlines == 0 {
			sb.WriteByte(' ')
		}
		pendingSpace = false
	}

	for _, r := range s {
		switch r {
		case ' ', '\t', '\r', '\u00a0':
			pendingSpace = true
		case '\n':
			pendingSpace = false
			if !empty && newlines < 2 {
				newlines++
			}
		default:
			if newlines > 0 {
				for range newlines {
					sb.WriteByte('\n')
				}
				newlines = 0
				pendingSpace = false
			}
			flushSpace()
			sb.WriteRune(r)
			empty = false
			newlines = 0
		}
	}
	return sb.String()
}
