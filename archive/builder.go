package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultsnap/vaultsnap/archive/zipwriter"
	"github.com/vaultsnap/vaultsnap/vault"
)

const (
	// Ext is the archive file extension. Retention only considers files
	// with this suffix.
	Ext = ".zip"
	// MetadataPrefix is the archive directory under which the metadata
	// tree is mirrored.
	MetadataPrefix = "meta/"
)

// Reporter receives progress during a build.
type Reporter interface {
	// FileStored is called after each primary tree entry.
	FileStored(processed int, total int)
	// MetadataStarted is called once, before the metadata tree walk.
	MetadataStarted()
}

// Result describes what one build produced.
type Result struct {
	Files       int  // primary tree entries stored
	MetaEntries int  // metadata entries stored (files, dirs, symlinks)
	Skipped     int  // metadata entries skipped after I/O failures
	Partial     bool // some metadata was skipped or unreachable
}

func (r Result) MarshalZerologObject(e *zerolog.Event) {
	e.Int("files", r.Files)
	e.Int("meta_entries", r.MetaEntries)
	e.Bool("partial", r.Partial)
	if r.Skipped > 0 {
		e.Int("skipped", r.Skipped)
	}
}

// Filename returns the archive name for a backup of vaultName at ts. The
// timestamp format sorts lexically in creation order.
func Filename(ts time.Time, vaultName string) string {
	return fmt.Sprintf("%s_%s%s", ts.Format("2006-01-02_15-04-05"), vaultName, Ext)
}

type Builder struct {
	logger       zerolog.Logger
	maxEntrySize int64
}

type BuildOption func(b *Builder)

// WithMaxEntrySize skips metadata files larger than maxBytes. 0 disables
// the limit.
func WithMaxEntrySize(maxBytes int64) BuildOption {
	return func(b *Builder) {
		b.maxEntrySize = maxBytes
	}
}

func NewBuilder(logger zerolog.Logger, opts ...BuildOption) *Builder {
	b := &Builder{logger: logger}
	for _, applyOpt := range opts {
		applyOpt(b)
	}
	return b
}

// Build streams files and the metadata tree rooted at metaRoot into w.
//
// Primary tree entries are host-verified: any failure reading one is fatal
// and aborts the build. Metadata failures are tolerated per entry; an
// unreachable metadata root only marks the result partial. Write failures
// on w are always fatal.
func (b *Builder) Build(
	ctx context.Context,
	w *zipwriter.ZipFile,
	files []vault.File,
	metaRoot string,
	report Reporter,
) (Result, error) {
	res := Result{}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := b.storeFile(w, f); err != nil {
			return res, fmt.Errorf("could not store %s: %w", f.Path(), err)
		}
		res.Files++
		if report != nil {
			report.FileStored(i+1, len(files))
		}
		b.logger.Debug().Object("file", f).Msg("stored vault file")
	}

	if report != nil {
		report.MetadataStarted()
	}

	if err := b.storeMetadataTree(ctx, w, metaRoot, &res); err != nil {
		return res, err
	}

	return res, nil
}

func (b *Builder) storeFile(w *zipwriter.ZipFile, f vault.File) error {
	entry, err := w.CreateHeader(&zip.FileHeader{
		Name:               f.Path(),
		UncompressedSize64: uint64(f.Size()),
		Modified:           f.ModTime(),
		Method:             zip.Deflate,
	})
	if err != nil {
		return err
	}

	r, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			b.logger.Warn().Err(err).Object("file", f).Msg("could not close vault file")
		}
	}()

	_, err = io.Copy(entry, r)
	return err
}

// storeMetadataTree walks the metadata directory and mirrors it under
// MetadataPrefix. A listing failure at the root is recovered: the build
// continues and the result is marked partial.
func (b *Builder) storeMetadataTree(ctx context.Context, w *zipwriter.ZipFile, metaRoot string, res *Result) error {
	if err := b.walkMetadata(ctx, w, metaRoot, MetadataPrefix, res); err != nil {
		if isWriteErr(err) {
			return err
		}
		b.logger.Warn().Err(err).Str("path", metaRoot).Msg("could not read metadata directory, archive will not include it")
		res.Partial = true
	}
	return nil
}

// writeError wraps failures writing to the archive itself, which are fatal
// unlike the per-entry read failures the walk tolerates.
type writeError struct {
	err error
}

func (e *writeError) Error() string {
	return e.err.Error()
}

func (e *writeError) Unwrap() error {
	return e.err
}

func isWriteErr(err error) bool {
	var we *writeError
	return errors.As(err, &we)
}

func (b *Builder) walkMetadata(ctx context.Context, w *zipwriter.ZipFile, absDir string, relDir string, res *Result) error {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return &writeError{err}
		}

		absChild := filepath.Join(absDir, entry.Name())
		relChild := path.Join(relDir, entry.Name())
		logger := b.logger.With().Str("path", absChild).Logger()

		info, err := os.Lstat(absChild)
		if err != nil {
			logger.Warn().Err(err).Msg("could not stat metadata entry, skipping")
			res.Skipped++
			res.Partial = true
			continue
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			// Store the link target as the entry content instead of
			// following it: cyclic or dangling links would otherwise
			// break the walk.
			target, err := os.Readlink(absChild)
			if err != nil {
				logger.Warn().Err(err).Msg("could not read symlink, skipping")
				res.Skipped++
				res.Partial = true
				continue
			}
			if err := b.storeBytes(w, relChild, info.ModTime(), []byte(target)); err != nil {
				return &writeError{err}
			}
			res.MetaEntries++

		case info.IsDir():
			if err := b.storeDir(w, relChild, info.ModTime()); err != nil {
				return &writeError{err}
			}
			res.MetaEntries++
			if err := b.walkMetadata(ctx, w, absChild, relChild, res); err != nil {
				if isWriteErr(err) {
					return err
				}
				logger.Warn().Err(err).Msg("could not list metadata directory, skipping")
				res.Skipped++
				res.Partial = true
			}

		case info.Mode().IsRegular():
			if b.maxEntrySize > 0 && info.Size() > b.maxEntrySize {
				logger.Warn().
					Int64("size", info.Size()).
					Int64("max_size", b.maxEntrySize).
					Msg("metadata entry larger than max entry size, skipping")
				res.Skipped++
				res.Partial = true
				continue
			}

			content, err := readWithRetry(absChild)
			if err != nil {
				logger.Warn().Err(err).Msg("could not read metadata entry, skipping")
				res.Skipped++
				res.Partial = true
				continue
			}
			if err := b.storeBytes(w, relChild, info.ModTime(), content); err != nil {
				return &writeError{err}
			}
			res.MetaEntries++
			logger.Debug().Msg("stored metadata entry")

		default:
			logger.Debug().Stringer("mode", info.Mode()).Msg("skipping irregular metadata entry")
		}
	}

	return nil
}

func (b *Builder) storeBytes(w *zipwriter.ZipFile, name string, modTime time.Time, content []byte) error {
	entry, err := w.CreateHeader(&zip.FileHeader{
		Name:               name,
		UncompressedSize64: uint64(len(content)),
		Modified:           modTime,
		Method:             zip.Deflate,
	})
	if err != nil {
		return err
	}
	_, err = entry.Write(content)
	return err
}

func (b *Builder) storeDir(w *zipwriter.ZipFile, name string, modTime time.Time) error {
	_, err := w.CreateHeader(&zip.FileHeader{
		Name:     name + "/",
		Modified: modTime,
		Method:   zip.Store,
	})
	return err
}

// readWithRetry reads a file, retrying once through a streamed read before
// giving up. Some filesystems fail transiently on the first open.
func readWithRetry(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err == nil {
		return content, nil
	}

	f, retryErr := os.Open(path)
	if retryErr != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	content, retryErr = io.ReadAll(f)
	if retryErr != nil {
		return nil, err
	}
	return content, nil
}
