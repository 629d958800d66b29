package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/vaultsnap/vaultsnap/history"
)

func newHistory(t *testing.T) *history.History {
	t.Helper()

	cli, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "runs.db")), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)
	require.NoError(t, cli.AutoMigrate(&history.Run{}))

	return &history.History{
		Cli:    cli,
		Logger: zerolog.New(zerolog.NewTestWriter(t)),
	}
}

func recordRuns(t *testing.T, h *history.History, count int) {
	t.Helper()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := range count {
		require.NoError(t, h.RecordRun(context.Background(), &history.Run{
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			FinishedAt:  base.Add(time.Duration(i)*time.Hour + time.Minute),
			Outcome:     history.OutcomeSuccess,
			ArchivePath: "/backups/archive.zip",
			FilesStored: 10 + i,
		}))
	}
}

func collectRuns(t *testing.T, h *history.History, limit int) []*history.Run {
	t.Helper()
	seq, err := h.IterRuns(context.Background(), limit)
	require.NoError(t, err)

	var runs []*history.Run
	for run := range seq {
		runs = append(runs, run)
	}
	return runs
}

func TestHistory_RecordAndIter(t *testing.T) {
	h := newHistory(t)
	recordRuns(t, h, 3)

	runs := collectRuns(t, h, 0)
	require.Len(t, runs, 3)

	// Most recent first.
	assert.Equal(t, 12, runs[0].FilesStored)
	assert.Equal(t, 10, runs[2].FilesStored)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
}

func TestHistory_IterSpansBatches(t *testing.T) {
	h := newHistory(t)
	recordRuns(t, h, 120)

	runs := collectRuns(t, h, 0)
	require.Len(t, runs, 120)

	// Every run exactly once, most recent first.
	seen := make(map[int]bool, len(runs))
	for i, run := range runs {
		assert.False(t, seen[run.FilesStored], "run %d yielded twice", run.FilesStored)
		seen[run.FilesStored] = true
		if i > 0 {
			assert.True(t, runs[i-1].StartedAt.After(run.StartedAt))
		}
	}
	assert.Equal(t, 129, runs[0].FilesStored)
	assert.Equal(t, 10, runs[119].FilesStored)
}

func TestHistory_IterLimitSpansBatches(t *testing.T) {
	h := newHistory(t)
	recordRuns(t, h, 120)

	runs := collectRuns(t, h, 75)
	require.Len(t, runs, 75)

	seen := make(map[int]bool, len(runs))
	for _, run := range runs {
		assert.False(t, seen[run.FilesStored])
		seen[run.FilesStored] = true
	}
}

func TestHistory_IterLimit(t *testing.T) {
	h := newHistory(t)
	recordRuns(t, h, 5)

	runs := collectRuns(t, h, 2)
	assert.Len(t, runs, 2)
}

func TestHistory_PruneRuns(t *testing.T) {
	h := newHistory(t)
	recordRuns(t, h, 5)

	require.NoError(t, h.PruneRuns(context.Background(), 2))

	runs := collectRuns(t, h, 0)
	require.Len(t, runs, 2)
	assert.Equal(t, 14, runs[0].FilesStored)
	assert.Equal(t, 13, runs[1].FilesStored)
}

func TestHistory_PruneRunsZeroKeepsAll(t *testing.T) {
	h := newHistory(t)
	recordRuns(t, h, 3)

	require.NoError(t, h.PruneRuns(context.Background(), 0))
	assert.Len(t, collectRuns(t, h, 0), 3)
}
