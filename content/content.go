// Package content flattens the unpacked members of an EPUB container into a
// single coherent document. Every chapter file gets a stable index in
// discovery order, all element ids are prefixed with the chapter namespace so
// they stay unique after concatenation, hyperlinks between chapter files are
// rewritten into the unified anchor namespace, local images are embedded as
// data URIs and the NCX navigation map is re-expressed with the same rewritten
// addressing scheme.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"epx/config"
)

// ErrNoContent is returned when a book yields neither plain text nor HTML - a
// container with nothing readable is not a valid import.
var ErrNoContent = errors.New("content: book yields no readable content")

// TOCEntry is one navigable table-of-contents node. Token is an opaque anchor
// fragment scoped to the HTML produced alongside it and is not portable
// across extraction runs.
type TOCEntry struct {
	Title    string
	Token    string
	Children []*TOCEntry
}

// Book is the terminal output of one extraction run. HTML is a fragment
// suitable for embedding inside an enclosing document body.
type Book struct {
	Text string
	HTML string
	TOC  []*TOCEntry
}

// Extract runs the whole flattening pipeline over the unpacked EPUB members
// under root. The call is synchronous, all intermediate state dies with it.
// Unreadable documents, dangling links and broken images are absorbed here
// and logged, they never fail the extraction. Only a completely empty result
// does, with ErrNoContent.
func Extract(ctx context.Context, root string, cfg *config.DocumentConfig, log *zap.Logger) (*Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, navs, err := discover(root)
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate book members: %w", err)
	}
	log.Debug("Book members discovered", zap.Int("documents", len(docs)), zap.Int("navigations", len(navs)))

	ns := buildNamespace(docs)
	log.Debug("Anchor namespace built", zap.Stringer("namespace", ns))
	res := &resolver{ns: ns}

	var chapters []*chapter
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch, err := processDocument(doc, root, res, cfg, log)
		if err != nil {
			// skipped document contributes nothing, the rest of the book
			// is still worth importing
			log.Warn("Skipping unreadable document", zap.String("path", doc.rel), zap.Error(err))
			continue
		}
		chapters = append(chapters, ch)
	}

	book := &Book{
		Text: assembleText(chapters),
		HTML: assembleHTML(chapters),
	}
	if len(strings.TrimSpace(book.Text)) == 0 && len(strings.TrimSpace(book.HTML)) == 0 {
		return nil, ErrNoContent
	}

	book.TOC = buildTOC(navs, root, res, cfg.TOC.UntitledLabel, log)
	return book, nil
}

// chapter holds per-document output of the pipeline. Never shared across
// documents.
type chapter struct {
	doc  *document
	text string
	html string
}

// processDocument runs the per-document stages: decode, isolate body, prefix
// anchors, resolve references, inline images, flatten.
func processDocument(doc *document, root string, res *resolver, cfg *config.DocumentConfig, log *zap.Logger) (*chapter, error) {
	body, err := doc.parse(root)
	if err != nil {
		return nil, err
	}

	rewriteAnchors(body, doc.anchor)
	rewriteLinks(body, res, doc)
	if cfg.Images.Inline {
		inlineImages(body, doc, root, &cfg.Images, log)
	}

	return &chapter{
		doc:  doc,
		text: flattenText(body),
		html: renderBody(body),
	}, nil
}

// assembleText concatenates chapter texts in chapter-index order with a blank
// line between non-empty chapters.
func assembleText(chapters []*chapter) string {
	parts := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		if len(ch.text) > 0 {
			parts = append(parts, ch.text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// assembleHTML wraps every chapter into a section carrying the chapter anchor
// id, with a visible break between chapters. A book whose chapters are all
// empty yields no HTML at all - section wrappers alone are not content. As
// long as at least one chapter has something to say empty siblings keep their
// sections, they may still be anchor targets.
func assembleHTML(chapters []*chapter) string {
	empty := true
	for _, ch := range chapters {
		if len(strings.TrimSpace(ch.html)) > 0 {
			empty = false
			break
		}
	}
	if empty {
		return ""
	}

	var sb strings.Builder
	first := true
	for _, ch := range chapters {
		if !first {
			sb.WriteString("\n<hr class=\"chapter-break\"/>\n")
		}
		first = false
		fmt.Fprintf(&sb, "<section class=\"chapter\" id=%q>", ch.doc.anchor)
		sb.WriteString(ch.html)
		sb.WriteString("</section>")
	}
	return sb.String()
}
