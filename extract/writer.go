package extract

import (
	"bufio"
	"fmt"
	"html"
	"os"
	"strings"

	"epx/config"
	"epx/content"
)

// writeBook serializes the extraction result to the output file in the
// requested format. Text output is the flattened plain text as is. HTML output
// is a minimal standalone page: the navigation tree up front, the flattened
// body after it, every TOC link pointing into the unified anchor namespace.
func writeBook(book *content.Book, path string, format config.OutputFmt) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	switch format {
	case config.OutputFmtText:
		if _, err := w.WriteString(book.Text); err != nil {
			return err
		}
		if len(book.Text) > 0 && !strings.HasSuffix(book.Text, "\n") {
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
	case config.OutputFmtHtml:
		if err := writeHTMLDocument(w, book); err != nil {
			return err
		}
	default:
		// this should never happen
		panic("unsupported format requested")
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func writeHTMLDocument(w *bufio.Writer, book *content.Book) error {
	w.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\"/>\n</head>\n<body>\n")
	if len(book.TOC) > 0 {
		w.WriteString("<nav class=\"toc\">\n")
		writeTOCList(w, book.TOC)
		w.WriteString("</nav>\n")
	}
	w.WriteString(book.HTML)
	_, err := w.WriteString("\n</body>\n</html>\n")
	return err
}

func writeTOCList(w *bufio.Writer, entries []*content.TOCEntry) {
	w.WriteString("<ol>\n")
	for _, e := range entries {
		fmt.Fprintf(w, "<li><a href=\"#%s\">%s</a>", e.Token, html.EscapeString(e.Title))
		if len(e.Children) > 0 {
			w.WriteByte('\n')
			writeTOCList(w, e.Children)
		}
		w.WriteString("</li>\n")
	}
	w.WriteString("</ol>\n")
}
