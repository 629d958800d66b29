package retention

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/vaultsnap/vaultsnap/archive"
)

// Stats describes what one prune pass deleted.
type Stats struct {
	Candidates int
	Deleted    int
	Failed     int
	Freed      int64
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("candidates", s.Candidates)
	e.Int("deleted", s.Deleted)
	e.Str("freed", units.HumanSize(float64(s.Freed)))
	if s.Failed > 0 {
		e.Int("failed", s.Failed)
	}
}

type candidate struct {
	path    string
	size    int64
	modTime time.Time
}

// Prune deletes the oldest archives in dirPath beyond keep, ranked by
// modification time. keep <= 0 keeps everything. Failures never abort the
// pass: each deletion is attempted independently and problems are only
// logged, so a prune cannot fail a backup run that already succeeded.
func Prune(dirPath string, keep int, logger zerolog.Logger) Stats {
	stats := Stats{}
	if keep <= 0 {
		return stats
	}

	logger = logger.With().Str("dir", dirPath).Int("keep", keep).Logger()

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		logger.Warn().Err(err).Msg("could not list backup directory, skipping prune")
		return stats
	}

	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archive.Ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Warn().Err(err).Str("name", entry.Name()).Msg("could not stat archive, skipping")
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dirPath, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	stats.Candidates = len(candidates)

	if len(candidates) <= keep {
		logger.Debug().Int("archives", len(candidates)).Msg("nothing to prune")
		return stats
	}

	// Most recent first, then delete everything past the keep window.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	for _, old := range candidates[keep:] {
		if err := os.Remove(old.path); err != nil {
			logger.Error().Err(err).Str("path", old.path).Msg("could not delete old archive")
			stats.Failed++
			continue
		}
		logger.Info().
			Str("path", old.path).
			Str("size", units.HumanSize(float64(old.size))).
			Time("mod_time", old.modTime).
			Msg("deleted old archive")
		stats.Deleted++
		stats.Freed += old.size
	}

	return stats
}
