package content

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"epx/utils/debug"
)

// String returns a readable rendering of the extraction result - the
// navigation forest plus content sizes. It exists solely for manual
// inspection during debugging.
func (b *Book) String() string {
	if b == nil {
		return "<nil Book>"
	}

	tw := debug.NewTreeWriter()
	tw.Line(0, "Book: text %d bytes, html %d bytes, toc roots %d", len(b.Text), len(b.HTML), len(b.TOC))
	tw.TextBlock(1, "text head", head(b.Text))
	tw.TextBlock(1, "html head", head(b.HTML))
	dumpTOC(tw, b.TOC, 1)
	return tw.String()
}

func head(s string) string {
	const limit = 120
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func dumpTOC(tw *debug.TreeWriter, entries []*TOCEntry, depth int) {
	for _, e := range entries {
		tw.Line(depth, "Entry[%q] token[%q] children[%d]", e.Title, e.Token, len(e.Children))
		dumpTOC(tw, e.Children, depth+1)
	}
}

// String dumps the anchor namespace with keys in natural order so chapter10
// does not land before chapter2. Debug aid only, lookup order is irrelevant
// to the engine.
func (ns namespace) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Anchor namespace: %d entries", len(ns))

	keys := slices.Collect(maps.Keys(ns))
	sort.Sort(natural.StringSlice(keys))
	for _, k := range keys {
		tw.Line(1, "%s => %s", k, ns[k])
	}
	return tw.String()
}
