package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Unpack extracts every member of the zip container read from r into dir,
// recreating the member directory structure. Entries with unsafe paths
// (absolute or containing "..") abort the whole operation - a container
// trying to escape its extraction directory is not worth recovering.
func Unpack(r io.ReaderAt, size int64, dir string) error {

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("unable to open container: %w", err)
	}

	for _, f := range zr.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := unpackFile(f, filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			return fmt.Errorf("unable to unpack %q: %w", name, err)
		}
	}
	return nil
}

// UnpackFile is a convenience wrapper unpacking container at the given path.
func UnpackFile(path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	return Unpack(f, fi.Size(), dir)
}

func unpackFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
