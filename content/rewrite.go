package content

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Schemes that never address book content. Left untouched wherever they
// appear.
var externalSchemes = []string{"http:", "https:", "mailto:", "data:", "javascript:"}

func isExternalRef(ref string) bool {
	lower := strings.ToLower(ref)
	for _, scheme := range externalSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// sanitizeFragment normalizes a fragment identifier into the restricted
// alphabet used in the flattened document: percent-decoded, alphanumerics and
// "-_:." kept, any other run of characters replaced with a single dash,
// repeated dashes collapsed. Idempotent - sanitizing an already sanitized
// value changes nothing.
func sanitizeFragment(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}

	var sb strings.Builder
	sb.Grow(len(s))
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == ':', r == '.':
			sb.WriteRune(r)
			lastDash = false
		default:
			// any other run, dashes included, collapses into one dash
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return sb.String()
}

// rewriteAnchors prefixes every id attribute value and every <a name> value
// with the chapter anchor id. Since every chapter has a unique prefix no two
// documents can collide after flattening, and the result stays usable as a
// fragment target.
func rewriteAnchors(body *html.Node, anchor string) {
	walkElements(body, func(n *html.Node) {
		if id := getAttr(n, "id"); id != "" {
			setAttr(n, "id", anchor+"-"+sanitizeFragment(id))
		}
		if n.DataAtom == atom.A {
			if name := getAttr(n, "name"); name != "" {
				setAttr(n, "name", anchor+"-"+sanitizeFragment(name))
			}
		}
	})
}

// resolver rewrites references into the unified anchor namespace. It is the
// single authority used both for hyperlinks inside chapters and for NCX
// navigation targets.
type resolver struct {
	ns namespace
}

// resolve classifies a reference originating in fromDir (chapter anchor
// fromAnchor when the origin is a chapter document, empty for navigation
// metadata) and rewrites it into the flattened namespace. The second return
// is false when the reference must be left exactly as it was: external
// schemes, and dangling paths that point outside the discovered document set.
// Leaving a dangling relative path untouched in a flattened document is a
// known sharp edge kept on purpose - guessing a target would be worse.
func (r *resolver) resolve(ref, fromAnchor, fromDir string) (string, bool) {
	if ref == "" || isExternalRef(ref) {
		return ref, false
	}

	// fragment-only reference targets the chapter it lives in
	if frag, ok := strings.CutPrefix(ref, "#"); ok {
		return fragmentTarget(fromAnchor, frag)
	}

	rest, frag, _ := strings.Cut(ref, "#")
	p, _, _ := strings.Cut(rest, "?") // query has no meaning after flattening

	// reference degenerated to "?query" or "#" - same document
	if p == "" {
		return fragmentTarget(fromAnchor, frag)
	}

	var target string
	if strings.HasPrefix(p, "/") {
		target = strings.TrimPrefix(p, "/")
	} else {
		target = path.Join(fromDir, p)
	}

	anchor, ok := r.ns[canonicalKey(target)]
	if !ok {
		// dangling cross-reference, do not guess
		return ref, false
	}
	if frag == "" {
		return "#" + anchor, true
	}
	return "#" + anchor + "-" + sanitizeFragment(frag), true
}

func fragmentTarget(fromAnchor, frag string) (string, bool) {
	if fromAnchor == "" {
		// reference from navigation metadata cannot be "same document" -
		// the metadata itself is not a chapter
		return frag, false
	}
	if frag == "" {
		return "#" + fromAnchor, true
	}
	return "#" + fromAnchor + "-" + sanitizeFragment(frag), true
}

// rewriteLinks rewrites href attributes on anchor elements. References that
// cannot be resolved keep their original value byte for byte.
func rewriteLinks(body *html.Node, res *resolver, doc *document) {
	fromDir := doc.dir()
	walkElements(body, func(n *html.Node) {
		if n.DataAtom != atom.A {
			return
		}
		href := getAttr(n, "href")
		if href == "" {
			return
		}
		if rewritten, ok := res.resolve(href, doc.anchor, fromDir); ok {
			setAttr(n, "href", rewritten)
		}
	})
}

// walkElements calls fn for every element in the subtree, depth-first, the
// root included.
func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}
