package zipwriter

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/vaultsnap/vaultsnap/fileutils"
)

// NewLazyZipFile returns a zip writer helper that opens the file upon first
// write. Deflate entries are compressed at the given level (0-9).
func NewLazyZipFile(path string, level int) *ZipFile {
	return &ZipFile{
		path:  path,
		level: level,
		lazyOpenFunc: func() (*os.File, error) {
			return openArchiveFile(path)
		},
		delFunc: func() error {
			return os.Remove(path)
		},
	}
}

type ZipFile struct {
	init         bool
	path         string
	level        int
	file         *os.File
	writer       *zip.Writer
	lazyOpenFunc func() (*os.File, error)
	delFunc      func() error
}

func (z *ZipFile) Path() string {
	return z.path
}

// Close the file and writer if it was opened.
func (z *ZipFile) Close() error {
	if !z.init {
		return nil
	}
	defer func() {
		z.init = false
	}()
	err := z.writer.Close()
	return errors.Join(err, z.file.Close())
}

// Delete the file if it was opened. Close first.
func (z *ZipFile) Delete() error {
	if !z.init && z.file == nil {
		return nil
	}
	return z.delFunc()
}

// Create opens the underlying file immediately. Callers that must end up
// with an archive on disk even when no entry is stored use it up front;
// otherwise the file appears on the first CreateHeader. Closing after
// Create with no entries yields a valid empty archive.
func (z *ZipFile) Create() error {
	if z.init {
		return nil
	}

	var err error
	z.file, err = z.lazyOpenFunc()
	if err != nil {
		return err
	}
	z.writer = zip.NewWriter(z.file)
	z.writer.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, z.level)
	})
	z.init = true
	return nil
}

// CreateHeader creates a new zip entry in the zip file.
func (z *ZipFile) CreateHeader(fh *zip.FileHeader) (io.Writer, error) {
	if err := z.Create(); err != nil {
		return nil, err
	}
	return z.writer.CreateHeader(fh)
}

func openArchiveFile(path string) (*os.File, error) {
	if fileutils.Exists(path) {
		return nil, fmt.Errorf("file or directory already exists with this name: %s", path)
	}

	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
}
