package vault

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// File is a single file in the primary tree.
type File interface {
	zerolog.LogObjectMarshaler
	Path() string // relative path inside the vault, forward slashes
	Size() int64  // length in bytes
	ModTime() time.Time
	Open() (io.ReadCloser, error)
}

// Source produces the primary tree for one backup run.
type Source interface {
	// Name is the display name used in archive filenames.
	Name() string
	// Files returns an ordered snapshot of the vault's files, taken once
	// at the start of a run.
	Files(ctx context.Context) ([]File, error)
}
