package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"epx/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates an empty debug report backed by the configured destination
// file, falling back to a temporary file when the destination is not writable.
func (conf *ReporterConfig) Prepare() (*Report, error) {

	r := &Report{items: make(map[string]item)}

	if f, err := os.Create(conf.Destination); err == nil {
		r.file = f
	} else if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err == nil {
		r.file = f
	} else {
		return nil, fmt.Errorf("unable to create report: %w", err)
	}
	return r, nil
}

// item is a single thing to be placed in the report archive: either a path
// read at Close time or a blob of data captured when it was stored.
type item struct {
	source   string // path exactly as the caller gave it
	resolved string // absolute path to read from, possibly a temporary copy
	tempRoot string // when set - temporary directory the report owns and must remove
	stamp    time.Time
	data     []byte
}

// Report accumulates files, directories and raw data to be packed into a
// single zip archive when the program finishes. All methods are safe on a nil
// receiver, so callers never have to check whether a report was requested.
// NOTE: presently not to be used concurrently!
type Report struct {
	items map[string]item
	file  *os.File
}

// Name returns absolute name of the report archive.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// Store registers a file or directory to be read and archived when the report
// is closed. The path must still exist at that point, absent paths are
// silently dropped from the archive.
func (r *Report) Store(name, path string) {
	if r == nil {
		return
	}

	if old, exists := r.items[name]; exists && old.source != path {
		// Somewhere I do not know what I am doing.
		panic(fmt.Sprintf("Attempt to overwrite file in the report for [%s]: was %s, now %s", name, old.source, path))
	}

	it := item{source: path, resolved: path}
	if p, err := filepath.Abs(path); err == nil {
		it.resolved = p
	}
	r.items[name] = it
}

// StoreData registers raw bytes to be archived under the requested name.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}

	if _, exists := r.items[name]; exists {
		// Somewhere I do not know what I am doing.
		panic(fmt.Sprintf("Attempt to overwrite data in the report for [%s]", name))
	}

	r.items[name] = item{data: data, stamp: time.Now()}
}

// StoreCopy snapshots a file or directory into a temporary location right
// away, so the report keeps its content even after the original is removed.
// Names are versioned with timestamps, storing under the same name repeatedly
// is safe.
func (r *Report) StoreCopy(name, path string) error {
	if r == nil {
		return nil
	}

	it := item{source: path, stamp: time.Now()}

	src, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if _, exists := r.items[name]; exists {
		// version the name to avoid collisions
		name = fmt.Sprintf("%s-%d", name, it.stamp.UnixNano())
	}

	dir, err := os.MkdirTemp("", misc.GetAppName()+"-r-")
	if err != nil {
		return err
	}
	it.tempRoot = dir

	if err := func() error {
		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		switch {
		case info.Mode().IsRegular():
			where, err := snapshotFile(dir, src, info.ModTime())
			if err != nil {
				return err
			}
			it.resolved = where
		case info.Mode().IsDir():
			if err := snapshotTree(dir, src); err != nil {
				return err
			}
			it.resolved = dir
		default:
			return fmt.Errorf("unable to snapshot %s: unexpected file mode %s", src, info.Mode())
		}
		return nil
	}(); err != nil {
		os.RemoveAll(dir)
		return err
	}

	r.items[name] = it
	return nil
}

// Close packs everything stored so far into the report archive and cleans up
// temporary copies made by StoreCopy.
func (r *Report) Close() error {
	if r == nil {
		// No report has been requested.
		return nil
	}
	if r.file == nil {
		return nil
	}
	defer r.file.Close()

	err := r.writeArchive()
	for _, it := range r.items {
		if it.tempRoot != "" {
			os.RemoveAll(it.tempRoot)
		}
	}
	return err
}

// writeArchive creates the final archive with all previously stored items.
func (r *Report) writeArchive() error {

	arc := zip.NewWriter(r.file)
	defer arc.Close()

	names, manifest := r.manifest()
	if err := archiveData(arc, "MANIFEST", time.Now(), manifest); err != nil {
		return err
	}

	// in the same order as in the manifest
	for _, name := range names {
		it := r.items[name]
		if len(it.data) > 0 {
			if err := archiveData(arc, name, it.stamp, it.data); err != nil {
				return err
			}
			continue
		}

		// ignoring absent paths
		info, err := os.Stat(it.resolved)
		if err != nil {
			continue
		}
		switch {
		case info.Mode().IsRegular():
			if err := archiveFile(arc, name, it.resolved, info.ModTime()); err != nil {
				return err
			}
		case info.Mode().IsDir():
			if err := archiveTree(arc, name, it.resolved); err != nil {
				return err
			}
		}
	}
	return nil
}

// manifest renders a sorted listing of everything going into the archive.
func (r *Report) manifest() ([]string, []byte) {

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()

	var buf bytes.Buffer
	for _, name := range names {
		it := r.items[name]
		stamp := it.stamp
		if stamp.IsZero() {
			stamp = now
		}
		fmt.Fprintf(&buf, "%s\t%s\t%s : %s\n", stamp.UTC().Format(time.UnixDate), name, it.source, it.resolved)
	}
	return names, buf.Bytes()
}

func archiveData(arc *zip.Writer, name string, t time.Time, data []byte) error {
	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func archiveFile(arc *zip.Writer, name, path string, t time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func archiveTree(arc *zip.Writer, name, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			// links, sockets and the like do not belong in the report
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return archiveFile(arc, filepath.ToSlash(filepath.Join(name, rel)), path, info.ModTime())
	})
}

func snapshotFile(dir, src string, modTime time.Time) (string, error) {
	// always make sure destination directory exists
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, filepath.Base(src))

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	if err := os.Chtimes(dst, modTime, modTime); err != nil {
		return "", err
	}
	return dst, nil
}

func snapshotTree(dir, src string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			// ignore links, sockets, etc.
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dir, rel)
		_, err = snapshotFile(filepath.Dir(target), path, info.ModTime())
		return err
	})
}
