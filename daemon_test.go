package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsnap/vaultsnap/config"
)

func writeArchives(t *testing.T, dir string, count int) {
	t.Helper()
	base := time.Now().Add(-time.Duration(count) * time.Hour)
	for i := range count {
		path := filepath.Join(dir, base.Add(time.Duration(i)*time.Hour).Format("2006-01-02_15-04-05")+"_vault.zip")
		require.NoError(t, os.WriteFile(path, []byte("archive"), 0600))
		require.NoError(t, os.Chtimes(path, time.Time{}, base.Add(time.Duration(i)*time.Hour)))
	}
}

func countArchives(t *testing.T, dir string) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	require.NoError(t, err)
	return len(matches)
}

func TestRetentionSweeper_ReadsConfigAtFireTime(t *testing.T) {
	firstDir := t.TempDir()
	secondDir := t.TempDir()
	writeArchives(t, firstDir, 1)
	writeArchives(t, secondDir, 3)

	var mu sync.Mutex
	cfg := config.Config{BackupDir: firstDir, KeepCount: 5}
	current := func() config.Config {
		mu.Lock()
		defer mu.Unlock()
		return cfg
	}

	logger := zerolog.New(zerolog.NewTestWriter(t))
	sweeper := newRetentionSweeper(current, logger)
	defer sweeper.Stop()
	require.NoError(t, sweeper.Reschedule("@every 50ms"))

	// Point the sweep at the second destination after it is running. The
	// next pass must pick up the edited destination and keep count.
	mu.Lock()
	cfg.BackupDir = secondDir
	cfg.KeepCount = 1
	mu.Unlock()

	require.Eventually(t, func() bool {
		return countArchives(t, secondDir) == 1
	}, 5*time.Second, 25*time.Millisecond)
	assert.Equal(t, 1, countArchives(t, firstDir))
}

func TestRetentionSweeper_EmptyScheduleDisables(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	sweeper := newRetentionSweeper(func() config.Config { return config.Config{} }, logger)
	defer sweeper.Stop()

	require.NoError(t, sweeper.Reschedule("@every 50ms"))
	require.NoError(t, sweeper.Reschedule(""))
	assert.Nil(t, sweeper.cron)
}

func TestRetentionSweeper_BadScheduleIsAnError(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	sweeper := newRetentionSweeper(func() config.Config { return config.Config{} }, logger)
	defer sweeper.Stop()

	assert.Error(t, sweeper.Reschedule("not a schedule"))
}
