package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"

	"epx/config"
	"epx/content"
)

// Values holds the variables made available to output name template expansion.
type Values struct {
	Context    string
	Title      string
	Date       string
	Format     string
	SourceFile string
	BookID     string
}

// bookTitle picks a presentable title for the book. EPUB metadata is not
// parsed here, so the first navigation root is the best label we have, the
// source file name is the fallback.
func bookTitle(book *content.Book, src string) string {
	if book != nil && len(book.TOC) > 0 && book.TOC[0].Title != "" {
		return book.TOC[0].Title
	}
	return strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
}

func expandTemplate(book *content.Book, name config.TemplateFieldName, field, src, bookID string, format config.OutputFmt) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:    string(name),
		Title:      bookTitle(book, src),
		Date:       time.Now().Format("2006-01-02"),
		Format:     format.String(),
		SourceFile: strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		BookID:     bookID,
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
