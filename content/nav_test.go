package content

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

const ncxHeader = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
<navMap>
`

const ncxFooter = `</navMap>
</ncx>`

func navResolver(t *testing.T, root string) *resolver {
	t.Helper()
	docs, _, err := discover(root)
	if err != nil {
		t.Fatalf("discover() error = %v", err)
	}
	return &resolver{ns: buildNamespace(docs)}
}

func TestParseNCX(t *testing.T) {
	root := t.TempDir()
	writeMember(t, root, "text/ch1.xhtml", []byte("<p>1</p>"))
	writeMember(t, root, "text/ch2.xhtml", []byte("<p>2</p>"))
	writeMember(t, root, "toc.ncx", []byte(ncxHeader+`
<navPoint id="n1" playOrder="1">
  <navLabel><text>Chapter One</text></navLabel>
  <content src="text/ch1.xhtml"/>
  <navPoint id="n1a" playOrder="2">
    <navLabel><text>Section</text></navLabel>
    <content src="text/ch1.xhtml#sec1"/>
  </navPoint>
</navPoint>
<navPoint id="n2" playOrder="3">
  <navLabel><text>Chapter Two</text></navLabel>
  <content src="text/ch2.xhtml"/>
</navPoint>
`+ncxFooter))

	res := navResolver(t, root)
	toc, err := parseNCX(root, "toc.ncx", res, "Untitled")
	if err != nil {
		t.Fatalf("parseNCX() error = %v", err)
	}

	if len(toc) != 2 {
		t.Fatalf("parseNCX() roots = %d, want 2", len(toc))
	}
	if toc[0].Title != "Chapter One" || toc[0].Token != "chapter-0" {
		t.Errorf("toc[0] = %q/%q, want Chapter One/chapter-0", toc[0].Title, toc[0].Token)
	}
	if len(toc[0].Children) != 1 || toc[0].Children[0].Token != "chapter-0-sec1" {
		t.Fatalf("toc[0] children = %+v, want one entry with token chapter-0-sec1", toc[0].Children)
	}
	if toc[1].Title != "Chapter Two" || toc[1].Token != "chapter-1" {
		t.Errorf("toc[1] = %q/%q, want Chapter Two/chapter-1", toc[1].Title, toc[1].Token)
	}
}

func TestParseNCXRelativeToLocation(t *testing.T) {
	root := t.TempDir()
	writeMember(t, root, "text/ch1.xhtml", []byte("<p>1</p>"))
	// NCX sits next to the chapter, its reference has no directory part
	writeMember(t, root, "text/nav.ncx", []byte(ncxHeader+`
<navPoint id="n1"><navLabel><text>One</text></navLabel><content src="ch1.xhtml"/></navPoint>
`+ncxFooter))

	res := navResolver(t, root)
	toc, err := parseNCX(root, "text/nav.ncx", res, "Untitled")
	if err != nil {
		t.Fatalf("parseNCX() error = %v", err)
	}
	if len(toc) != 1 || toc[0].Token != "chapter-0" {
		t.Fatalf("parseNCX() = %+v, want single entry with token chapter-0", toc)
	}
}

func TestParseNCXPromotesOrphanedChildren(t *testing.T) {
	root := t.TempDir()
	writeMember(t, root, "text/ch1.xhtml", []byte("<p>1</p>"))
	writeMember(t, root, "text/ch2.xhtml", []byte("<p>2</p>"))
	writeMember(t, root, "toc.ncx", []byte(ncxHeader+`
<navPoint id="before"><navLabel><text>Before</text></navLabel><content src="text/ch1.xhtml"/></navPoint>
<navPoint id="gone">
  <navLabel><text>Missing Part</text></navLabel>
  <content src="text/missing.xhtml"/>
  <navPoint id="kept1"><navLabel><text>Kept One</text></navLabel><content src="text/ch1.xhtml#a"/></navPoint>
  <navPoint id="kept2"><navLabel><text>Kept Two</text></navLabel><content src="text/ch2.xhtml"/></navPoint>
</navPoint>
<navPoint id="after"><navLabel><text>After</text></navLabel><content src="text/ch2.xhtml#z"/></navPoint>
`+ncxFooter))

	res := navResolver(t, root)
	toc, err := parseNCX(root, "toc.ncx", res, "Untitled")
	if err != nil {
		t.Fatalf("parseNCX() error = %v", err)
	}

	// unresolvable point disappears, its children take its position
	want := []struct {
		title string
		token string
	}{
		{"Before", "chapter-0"},
		{"Kept One", "chapter-0-a"},
		{"Kept Two", "chapter-1"},
		{"After", "chapter-1-z"},
	}
	if len(toc) != len(want) {
		t.Fatalf("parseNCX() roots = %d, want %d", len(toc), len(want))
	}
	for i, w := range want {
		if toc[i].Title != w.title || toc[i].Token != w.token {
			t.Errorf("toc[%d] = %q/%q, want %q/%q", i, toc[i].Title, toc[i].Token, w.title, w.token)
		}
	}
}

func TestParseNCXUntitledFallback(t *testing.T) {
	root := t.TempDir()
	writeMember(t, root, "ch1.xhtml", []byte("<p>1</p>"))
	writeMember(t, root, "toc.ncx", []byte(ncxHeader+`
<navPoint id="n1"><navLabel><text>   </text></navLabel><content src="ch1.xhtml"/></navPoint>
`+ncxFooter))

	res := navResolver(t, root)
	toc, err := parseNCX(root, "toc.ncx", res, "Untitled")
	if err != nil {
		t.Fatalf("parseNCX() error = %v", err)
	}
	if len(toc) != 1 || toc[0].Title != "Untitled" {
		t.Fatalf("parseNCX() = %+v, want single entry titled Untitled", toc)
	}
}

func TestBuildTOCFirstNonEmptyWins(t *testing.T) {
	root := t.TempDir()
	writeMember(t, root, "ch1.xhtml", []byte("<p>1</p>"))
	// first candidate is garbage, second has no resolvable points, third works
	writeMember(t, root, "a.ncx", []byte("not xml at all <<<"))
	writeMember(t, root, "b.ncx", []byte(ncxHeader+`
<navPoint id="n1"><navLabel><text>Gone</text></navLabel><content src="missing.xhtml"/></navPoint>
`+ncxFooter))
	writeMember(t, root, "c.ncx", []byte(ncxHeader+`
<navPoint id="n1"><navLabel><text>Works</text></navLabel><content src="ch1.xhtml"/></navPoint>
`+ncxFooter))

	res := navResolver(t, root)
	log := zaptest.NewLogger(t)

	toc := buildTOC([]string{"a.ncx", "b.ncx", "c.ncx"}, root, res, "Untitled", log)
	if len(toc) != 1 || toc[0].Title != "Works" {
		t.Fatalf("buildTOC() = %+v, want single entry titled Works", toc)
	}
}

func TestBuildTOCNoNavigation(t *testing.T) {
	root := t.TempDir()
	res := navResolver(t, root)
	log := zaptest.NewLogger(t)

	if toc := buildTOC(nil, root, res, "Untitled", log); toc != nil {
		t.Errorf("buildTOC() = %+v, want nil", toc)
	}
}
