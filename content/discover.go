package content

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// document is one discovered chapter file. Index is its rank in the globally
// sorted discovery order and is never reassigned once set - it is the sole
// source of truth for chapter ordering.
type document struct {
	rel    string // forward-slash path relative to extraction root, as found
	key    string // canonical lookup key, see canonicalKey
	index  int
	anchor string // "chapter-<index>"
}

// dir returns the document location relative to the root, for resolving
// relative references originating in this document.
func (d *document) dir() string {
	return path.Dir(d.rel)
}

// namespace maps canonical member paths to chapter anchor ids. Built once per
// extraction, read-only afterwards.
type namespace map[string]string

var documentExts = map[string]bool{
	".xhtml": true,
	".html":  true,
	".htm":   true,
}

// discover enumerates chapter documents and navigation metadata files under
// root. Both lists are sorted lexicographically by relative path so repeated
// runs on the same input always produce identical chapter indices. Hidden
// files and directories are skipped.
func discover(root string) ([]*document, []string, error) {
	var rels, navs []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch ext := strings.ToLower(path.Ext(rel)); {
		case documentExts[ext]:
			rels = append(rels, rel)
		case ext == ".ncx":
			navs = append(navs, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Strings(rels)
	sort.Strings(navs)

	docs := make([]*document, len(rels))
	for i, rel := range rels {
		docs[i] = &document{
			rel:    rel,
			key:    canonicalKey(rel),
			index:  i,
			anchor: chapterAnchor(i),
		}
	}
	return docs, navs, nil
}

// buildNamespace maps every document's canonical path to its chapter anchor
// id. Two differently spelled references to the same member must canonicalize
// to the same key.
func buildNamespace(docs []*document) namespace {
	ns := make(namespace, len(docs))
	for _, doc := range docs {
		ns[doc.key] = doc.anchor
	}
	return ns
}

func chapterAnchor(index int) string {
	return fmt.Sprintf("chapter-%d", index)
}

// canonicalKey normalizes a member path into the form used for all namespace
// lookups: forward slashes, percent-decoded, leading "./" segments stripped,
// lower case.
func canonicalKey(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.ToLower(p)
}

// memberPath converts a root-relative member reference into a filesystem
// location, keeping original case - canonical lowering is for namespace
// lookups only, the filesystem may well be case sensitive.
func memberPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// readMember reads a member file; os errors are reported as-is so the caller
// can decide whether the failure is fatal.
func readMember(root, rel string) ([]byte, error) {
	return os.ReadFile(memberPath(root, rel))
}
