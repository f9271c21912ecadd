// Package extract implements the batch driver behind the "extract" command.
// It accepts a directory, a zip archive or a single EPUB file, locates every
// book inside, unpacks each one into a scratch directory and runs the content
// flattening pipeline over it, writing one output document per book.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"epx/archive"
	"epx/config"
	"epx/content"
	"epx/misc"
	"epx/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("extract")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format, err := config.ParseOutputFmt(cmd.String("to"))
	if err != nil {
		log.Warn("Unknown output format requested, switching to text", zap.Error(err))
		format = config.OutputFmtText
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, format, log)
}

// process handles the core extraction logic independently of CLI framework. It
// determines the input type (directory, archive, or single file) and processes
// accordingly.
func process(ctx context.Context, src, dst string, format config.OutputFmt, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, format, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		arc, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if arc {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, "", dst, format, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		book, err := isBookFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if book && len(tail) == 0 {
			// we have book, it cannot have tail
			data, err := os.ReadFile(head)
			if err != nil {
				return fmt.Errorf("unable to read book (%s): %w", head, err)
			}
			if err := processBook(ctx, data, filepath.Base(head), dst, format, log); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
				return err
			}
			break
		}
		return fmt.Errorf("input was not recognized as EPUB book (%s): %w", head, ErrNotEPUB)

	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding EPUB files and processes them.
// Individual book failures are collected, not fatal - a batch run reports
// everything it could not import at the end.
func processDir(ctx context.Context, dir, dst string, format config.OutputFmt, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	var batchErr error

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		arc, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if arc {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, format, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
				batchErr = multierr.Append(batchErr, err)
			}
			return nil
		}

		book, err := isBookFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !book {
			log.Debug("Skipping file, not recognized as book or archive", zap.String("file", path))
			return nil
		}

		count++

		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			batchErr = multierr.Append(batchErr, err)
			return nil
		}

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processBook(ctx, data, src, dst, format, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			batchErr = multierr.Append(batchErr, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return batchErr
}

// processArchive walks all files inside archive, finds EPUB files under
// "pathIn" and processes them.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, format config.OutputFmt, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	var batchErr error

	err = archive.Walk(path, pathIn, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			batchErr = multierr.Append(batchErr, err)
			return nil
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			batchErr = multierr.Append(batchErr, err)
			return nil
		}

		if !isBookData(data) {
			log.Debug("Skipping file, not recognized as book", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		if err := processBook(ctx, data, filepath.Join(pathOut, pathInArchive), dst, format, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			batchErr = multierr.Append(batchErr, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return batchErr
}

// processBook processes a single EPUB container. "src" is part of the source
// path (always including file name) relative to the original path. When actual
// file was specified it will be just base file name without a path. When
// looking inside archive or directory it will be relative path inside archive
// or directory (including base file name). "dst" is the destination directory
// where the extracted document should be written.
func processBook(ctx context.Context, data []byte, src, dst string, format config.OutputFmt, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	bookID := uuid.NewString()
	var outputName string

	log.Info("Extraction starting", zap.String("from", src), zap.String("book_id", bookID))
	defer func(start time.Time) {
		// NOTE: when multiple books are being processed a single bad container
		// should never stop the batch, so panics are absorbed here.
		if r := recover(); r != nil {
			log.Error("Extraction ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("extraction panic: %v", r)
		} else {
			log.Info("Extraction completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("book_id", bookID))
		}
	}(time.Now())

	tmp, err := os.MkdirTemp("", fmt.Sprintf("%s-x-%s-", misc.GetAppName(), bookID))
	if err != nil {
		return fmt.Errorf("unable to create scratch directory: %w", err)
	}
	defer os.RemoveAll(tmp)
	defer func() {
		// when a debug report was requested keep the unpacked container of a
		// failed book around for inspection, runs before the scratch cleanup
		if rerr == nil {
			return
		}
		if err := env.Rpt.StoreCopy(fmt.Sprintf("unpacked-%s", bookID), tmp); err != nil {
			log.Warn("Unable to store unpacked container in the report", zap.String("book_id", bookID), zap.Error(err))
		}
	}()

	if err := archive.Unpack(bytes.NewReader(data), int64(len(data)), tmp); err != nil {
		return fmt.Errorf("unable to unpack container (%s): %w", src, err)
	}

	book, err := content.Extract(ctx, tmp, &env.Cfg.Document, log)
	if err != nil {
		return fmt.Errorf("unable to extract content (%s): %w", src, err)
	}
	env.Rpt.StoreData(fmt.Sprintf("book-%s.dump", bookID), []byte(book.String()))

	// Determine output file name and path based on input and configuration.
	outputName = buildOutputPath(book, src, dst, bookID, format, env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := writeBook(book, outputName, format); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	// Store extraction result for debugging
	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s%s", bookID, filepath.Ext(outputName)), outputName)
	}

	return nil
}
