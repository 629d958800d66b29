package vault

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewFSSource returns a Source rooted at dirPath. Dot-prefixed entries are
// skipped: hidden trees are not part of the vault's content, and the
// metadata directory conventionally lives among them and is archived by the
// metadata pass instead.
func NewFSSource(dirPath string, name string, logger zerolog.Logger) Source {
	if name == "" {
		name = filepath.Base(dirPath)
	}
	return &fsSource{
		root:   dirPath,
		name:   name,
		logger: logger.With().Str("vault", dirPath).Logger(),
	}
}

type fsSource struct {
	root   string
	name   string
	logger zerolog.Logger
}

func (s *fsSource) Name() string {
	return s.name
}

func (s *fsSource) Files(ctx context.Context) ([]File, error) {
	var files []File
	var scanned int

	s.logger.Debug().Msg("start scanning vault files")

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("could not scan %s: %w", path, err)
		}

		if strings.HasPrefix(d.Name(), ".") && path != s.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("could not stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("could not resolve path %s: %w", path, err)
		}

		scanned++
		files = append(files, &fsFile{
			absPath: path,
			relPath: filepath.ToSlash(rel),
			info:    info,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int("scanned", scanned).Msg("done scanning vault files")
	return files, nil
}

type fsFile struct {
	absPath string
	relPath string
	info    fs.FileInfo
}

func (f *fsFile) Path() string {
	return f.relPath
}

func (f *fsFile) Size() int64 {
	return f.info.Size()
}

func (f *fsFile) ModTime() time.Time {
	return f.info.ModTime()
}

func (f *fsFile) Open() (io.ReadCloser, error) {
	return os.Open(f.absPath)
}

func (f *fsFile) MarshalZerologObject(e *zerolog.Event) {
	e.Str("path", f.relPath)
	e.Int64("size", f.info.Size())
}
