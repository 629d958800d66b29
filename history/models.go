package history

import (
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

// Run is one recorded backup run.
type Run struct {
	ID           uint `gorm:"primaryKey"`
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcome      string
	ArchivePath  string
	ArchiveSize  int64
	FilesStored  int
	FilesSkipped int
	Error        string
	CreatedAt    time.Time
}

func (r Run) MarshalZerologObject(e *zerolog.Event) {
	e.Time("started_at", r.StartedAt)
	e.Str("outcome", r.Outcome)
	e.Str("archive", r.ArchivePath)
	e.Str("size", units.HumanSize(float64(r.ArchiveSize)))
	e.Int("files", r.FilesStored)
	if r.FilesSkipped > 0 {
		e.Int("skipped", r.FilesSkipped)
	}
	if r.Error != "" {
		e.Str("error", r.Error)
	}
}
