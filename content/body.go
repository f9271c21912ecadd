package content

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// parse reads the document from disk, decodes it and returns its body
// subtree ready for rewriting. Malformed markup is handled on best effort
// basis by the tolerant html parser; a document without a body wrapper is
// treated as all body.
func (d *document) parse(root string) (*html.Node, error) {
	data, err := readMember(root, d.rel)
	if err != nil {
		return nil, err
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		// html.Parse recovers from practically anything, so treat this as
		// the document being genuinely undecodable
		return nil, fmt.Errorf("unable to parse document: %w", err)
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return nil, errors.New("no body in parsed document")
	}
	synthesizeBodyAnchor(body)
	return body, nil
}

// decodeText decodes raw bytes trying UTF-8 first, then UTF-16 (either
// endianness, BOM respected when present), then Latin-1.
func decodeText(data []byte) (string, error) {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return string(data), nil
	}

	if looksLikeUTF16(data) {
		dec := unicode.UTF16(utf16Endianness(data), unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil && utf8.Valid(out) {
			return string(out), nil
		}
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("unable to decode document bytes: %w", err)
	}
	return string(out), nil
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// looksLikeUTF16 accepts a BOM or an even-length prefix interleaved with NUL
// bytes, which is what UTF-16 encoded markup looks like.
func looksLikeUTF16(data []byte) bool {
	if len(data) < 2 || len(data)%2 != 0 {
		return false
	}
	if (data[0] == 0xFE && data[1] == 0xFF) || (data[0] == 0xFF && data[1] == 0xFE) {
		return true
	}
	zeros := 0
	limit := min(len(data), 512)
	for i := 0; i < limit; i++ {
		if data[i] == 0 {
			zeros++
		}
	}
	return zeros*4 > limit
}

func utf16Endianness(data []byte) unicode.Endianness {
	if len(data) >= 2 {
		if data[0] == 0xFE && data[1] == 0xFF {
			return unicode.BigEndian
		}
		if data[0] == 0xFF && data[1] == 0xFE {
			return unicode.LittleEndian
		}
		// no BOM - guess by position of NUL bytes in the first code units
		if data[0] == 0 {
			return unicode.BigEndian
		}
	}
	return unicode.LittleEndian
}

// synthesizeBodyAnchor makes direct links to "the document" land on a stable
// position after flattening: when the body tag itself carries an id or name,
// a zero-width anchor with that identifier is planted as the very first piece
// of content. The anchor prefixing pass later namespaces it like any other
// id.
func synthesizeBodyAnchor(body *html.Node) {
	id := getAttr(body, "id")
	if id == "" {
		id = getAttr(body, "name")
	}
	if id == "" {
		return
	}

	span := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Span,
		Data:     "span",
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	if body.FirstChild != nil {
		body.InsertBefore(span, body.FirstChild)
	} else {
		body.AppendChild(span)
	}
}

// findElement returns the first element with the given atom in depth-first
// order.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// renderBody serializes the children of the body element back to markup.
func renderBody(body *html.Node) string {
	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			// Render on an in-memory tree only fails on unknown node types
			// which we never produce
			continue
		}
	}
	return sb.String()
}
