package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultIntervalHours    = 4.0
	DefaultCompressionLevel = 6
)

// Config is the backup configuration loaded from the user-edited config file.
type Config struct {
	// VaultDir is the root of the primary tree to back up.
	VaultDir string `json:"vault_dir"`
	// VaultName is the display name used in archive filenames. Defaults to
	// the base name of VaultDir.
	VaultName string `json:"vault_name,omitempty"`
	// MetadataDir is the root of the secondary metadata tree. Defaults to
	// <vault_dir>/.vaultsnap.
	MetadataDir string `json:"metadata_dir,omitempty"`

	// BackupDir is the primary destination. Backups fail with a
	// configuration error when it is empty.
	BackupDir string `json:"backup_dir"`
	// SecondaryDir is an optional second destination that receives a copy
	// of every archive written to BackupDir.
	SecondaryDir string `json:"secondary_backup_dir,omitempty"`

	// IntervalHours is the automatic backup interval. Fractions are allowed.
	IntervalHours float64 `json:"backup_interval_hours,omitempty"`
	// KeepCount is the number of archives retained in BackupDir. 0 keeps all.
	KeepCount int `json:"max_backups"`
	// KeepCountSecondary is the retention for SecondaryDir. 0 keeps all.
	KeepCountSecondary int `json:"max_backups_secondary"`

	// CompressionLevel is the deflate level (0-9) used for archive entries.
	CompressionLevel int `json:"compression_level,omitempty"`
	// MaxEntrySize skips metadata files larger than this. 0 means no limit.
	MaxEntrySize SizeArgument `json:"max_entry_size,omitempty"`

	// SweepSchedule is an optional cron expression for an extra retention
	// sweep independent of backup runs.
	SweepSchedule string `json:"retention_cron,omitempty"`
}

// State is the schedule bookkeeping persisted between runs, kept in a file
// separate from the config so saving it does not trip the config watcher.
type State struct {
	LastBackup time.Time `json:"last_backup,omitempty"`
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.VaultName == "" && c.VaultDir != "" {
		c.VaultName = filepath.Base(c.VaultDir)
	}
	if c.MetadataDir == "" && c.VaultDir != "" {
		c.MetadataDir = filepath.Join(c.VaultDir, ".vaultsnap")
	}
	if c.IntervalHours == 0 {
		c.IntervalHours = DefaultIntervalHours
	}
	if c.CompressionLevel == 0 {
		c.CompressionLevel = DefaultCompressionLevel
	}
}

// Validate reports the first invalid field. An empty BackupDir is allowed
// here: backup runs reject it with a configuration error instead.
func (c *Config) Validate() error {
	if c.VaultDir == "" {
		return fmt.Errorf("vault_dir is required")
	}
	if c.IntervalHours <= 0 {
		return fmt.Errorf("backup_interval_hours must be positive, got %v", c.IntervalHours)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression_level must be between 0 and 9, got %d", c.CompressionLevel)
	}
	if c.KeepCount < 0 {
		return fmt.Errorf("max_backups must not be negative, got %d", c.KeepCount)
	}
	if c.KeepCountSecondary < 0 {
		return fmt.Errorf("max_backups_secondary must not be negative, got %d", c.KeepCountSecondary)
	}
	return nil
}

// Interval returns the automatic backup interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalHours * float64(time.Hour))
}

func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("vault", c.VaultDir)
	e.Str("dest", c.BackupDir)
	e.Float64("interval_hours", c.IntervalHours)
	e.Int("max_backups", c.KeepCount)

	if c.SecondaryDir != "" {
		e.Str("secondary_dest", c.SecondaryDir)
		e.Int("max_backups_secondary", c.KeepCountSecondary)
	}
	if c.MaxEntrySize.Size > 0 {
		e.Int64("max_entry_size", c.MaxEntrySize.Size)
	}
	if c.SweepSchedule != "" {
		e.Str("retention_cron", c.SweepSchedule)
	}
}
