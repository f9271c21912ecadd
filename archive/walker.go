// Package archive handles zip containers: walking library archives that hold
// multiple books and unpacking a single book container onto disk.
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// WalkFunc is the type of the function called by Walk for every archive
// member matching the requested prefix. The archive argument is the archive
// path given to Walk, file is the member entry. A non-nil error stops the
// walk and is returned from Walk as is.
type WalkFunc func(archive string, file *zip.File) error

// Walk visits every regular member of the archive whose name starts with
// prefix, in archive order. Member names with path traversal components
// ("..") or absolute paths fail the walk outright to prevent Zip Slip.
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// isSafePath returns false for member names that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
