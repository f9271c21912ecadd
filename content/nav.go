package content

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// buildTOC derives the navigation tree from discovered NCX files. Files are
// tried in discovery order and the first one yielding a non-empty tree wins,
// the rest are ignored - there is no merging across navigation files.
func buildTOC(navs []string, root string, res *resolver, untitled string, log *zap.Logger) []*TOCEntry {
	for _, rel := range navs {
		toc, err := parseNCX(root, rel, res, untitled)
		if err != nil {
			log.Warn("Skipping unreadable navigation metadata", zap.String("path", rel), zap.Error(err))
			continue
		}
		if len(toc) > 0 {
			log.Debug("Navigation tree built", zap.String("path", rel), zap.Int("roots", len(toc)))
			return toc
		}
	}
	return nil
}

// parseNCX reads one NCX file and converts its navMap into a TOCEntry forest
// with every target re-expressed in the flattened anchor namespace.
func parseNCX(root, rel string, res *resolver, untitled string) ([]*TOCEntry, error) {
	f, err := os.Open(memberPath(root, rel))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := etree.NewDocument()
	// NCX files in the wild violate the XML standard often enough that strict
	// parsing is not an option
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("unable to parse NCX: %w", err)
	}

	ncx := doc.Root()
	if ncx == nil {
		return nil, fmt.Errorf("NCX %q has no root element", rel)
	}

	navMap := childElement(ncx, "navMap")
	if navMap == nil {
		return nil, nil
	}
	return convertNavPoints(navMap, path.Dir(rel), res, untitled), nil
}

// convertNavPoints walks nested navPoint elements recursively. A point whose
// target does not resolve into the flattened namespace produces no node, but
// its resolvable descendants are spliced into the parent's child list at its
// position - a broken intermediate level never swallows a whole subtree.
func convertNavPoints(parent *etree.Element, navDir string, res *resolver, untitled string) []*TOCEntry {
	var entries []*TOCEntry

	for _, point := range parent.ChildElements() {
		if point.Tag != "navPoint" {
			continue
		}

		children := convertNavPoints(point, navDir, res, untitled)

		token, ok := resolveNavTarget(point, navDir, res)
		if !ok {
			entries = append(entries, children...)
			continue
		}

		title := navPointTitle(point)
		if title == "" {
			title = untitled
		}
		entries = append(entries, &TOCEntry{
			Title:    title,
			Token:    token,
			Children: children,
		})
	}
	return entries
}

// resolveNavTarget resolves the point's content src through the same
// resolver used for chapter hyperlinks, relative to the NCX location. The
// token is the resolved fragment without the leading "#".
func resolveNavTarget(point *etree.Element, navDir string, res *resolver) (string, bool) {
	content := childElement(point, "content")
	if content == nil {
		return "", false
	}
	src := content.SelectAttrValue("src", "")
	if src == "" {
		return "", false
	}
	resolved, ok := res.resolve(src, "", navDir)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(resolved, "#"), true
}

// navPointTitle returns the first non-empty text found inside the point,
// nested points excluded so a parent can not steal the label of its first
// child.
func navPointTitle(point *etree.Element) string {
	for _, child := range point.ChildElements() {
		if child.Tag == "navPoint" {
			continue
		}
		if text := firstText(child); text != "" {
			return text
		}
	}
	return ""
}

func firstText(el *etree.Element) string {
	if text := strings.TrimSpace(el.Text()); text != "" {
		return text
	}
	for _, child := range el.ChildElements() {
		if text := firstText(child); text != "" {
			return text
		}
	}
	return ""
}

// childElement finds a direct child by local tag name, whatever namespace
// prefix the document chose to use.
func childElement(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}
