package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/vaultsnap/vaultsnap/archive"
	"github.com/vaultsnap/vaultsnap/archive/zipwriter"
	"github.com/vaultsnap/vaultsnap/config"
	"github.com/vaultsnap/vaultsnap/fileutils"
	"github.com/vaultsnap/vaultsnap/history"
	"github.com/vaultsnap/vaultsnap/retention"
	"github.com/vaultsnap/vaultsnap/scheduler"
	"github.com/vaultsnap/vaultsnap/vault"
)

// ErrNoDestination is returned when a backup is requested without a
// configured primary destination.
var ErrNoDestination = errors.New("no backup directory configured")

const (
	successNoticeDuration = 5 * time.Second
	failureNoticeDuration = 10 * time.Second
)

type Params struct {
	Config   config.Config
	State    config.State
	Source   vault.Source
	Store    config.Store
	Notifier Notifier
	History  *history.History // optional run catalog
	Logger   zerolog.Logger
	Now      func() time.Time
}

func New(params Params) *Orchestrator {
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Orchestrator{
		cfg:      params.Config,
		state:    params.State,
		source:   params.Source,
		store:    params.Store,
		notifier: &safeNotifier{n: params.Notifier, logger: params.Logger},
		history:  params.History,
		logger:   params.Logger,
		now:      params.Now,
	}
}

// Orchestrator runs backups: it builds the archive, writes it to the
// configured destinations, updates the schedule bookkeeping and prunes old
// archives. It owns the in-progress guard that keeps runs from
// overlapping.
type Orchestrator struct {
	source   vault.Source
	store    config.Store
	notifier *safeNotifier
	history  *history.History
	logger   zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	cfg   config.Config
	state config.State

	busy atomic.Bool
}

var _ scheduler.Runner = (*Orchestrator)(nil)

// Running reports whether a backup is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.busy.Load()
}

// SetConfiguration swaps the active configuration. The next run picks it
// up; a run already in flight keeps the configuration it started with.
func (o *Orchestrator) SetConfiguration(cfg config.Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
	o.logger.Info().Object("config", cfg).Msg("configuration updated")
}

// Configuration returns the configuration the next run will use.
func (o *Orchestrator) Configuration() config.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// LastBackup returns the completion time of the most recent successful
// backup, zero when there is none.
func (o *Orchestrator) LastBackup() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.LastBackup
}

// CreateBackup runs one backup. A blank primary destination is a
// configuration error and changes no state. When a backup is already in
// progress the call is absorbed and returns scheduler.ErrAlreadyRunning,
// so callers can tell an absorbed request from a completed run without
// treating it as a failure. Everything else follows the
// archive-write outcome: a primary write failure is fatal for the run
// (bookkeeping untouched, retention skipped), while secondary-copy and
// retention problems only produce warnings.
func (o *Orchestrator) CreateBackup(ctx context.Context) error {
	o.mu.Lock()
	cfg := o.cfg
	o.mu.Unlock()

	if strings.TrimSpace(cfg.BackupDir) == "" {
		o.notifier.ShowTransient("Backup failed: no backup directory configured", failureNoticeDuration)
		return ErrNoDestination
	}

	if !o.busy.CompareAndSwap(false, true) {
		o.logger.Info().Msg("backup already in progress, skipping")
		return scheduler.ErrAlreadyRunning
	}
	defer o.busy.Store(false)

	run := &history.Run{StartedAt: o.now()}
	err := o.run(ctx, cfg, run)
	run.FinishedAt = o.now()
	if err != nil {
		run.Outcome = history.OutcomeFailure
		run.Error = err.Error()
	}
	o.recordRun(ctx, run)

	return err
}

func (o *Orchestrator) run(ctx context.Context, cfg config.Config, run *history.Run) error {
	startTime := o.now()
	o.logger.Info().Str("vault", o.source.Name()).Str("dest", cfg.BackupDir).Msg("starting backup")
	o.notifier.ShowProgress(fmt.Sprintf("Backing up %s...", o.source.Name()), true)

	files, err := o.source.Files(ctx)
	if err != nil {
		return o.fail(fmt.Errorf("could not list vault files: %w", err))
	}

	name := archive.Filename(startTime, o.source.Name())

	if err := os.MkdirAll(cfg.BackupDir, 0755); err != nil {
		return o.fail(fmt.Errorf("could not create backup directory: %w", err))
	}
	if err := fileutils.VerifyWritable(cfg.BackupDir); err != nil {
		return o.fail(fmt.Errorf("backup directory is not writable: %w", err))
	}

	archivePath := filepath.Join(cfg.BackupDir, name)
	w := zipwriter.NewLazyZipFile(archivePath, cfg.CompressionLevel)
	// Open up front: an empty vault must still leave an archive behind.
	if err := w.Create(); err != nil {
		return o.fail(fmt.Errorf("could not create archive: %w", err))
	}

	builder := archive.NewBuilder(o.logger, archive.WithMaxEntrySize(cfg.MaxEntrySize.Size))
	res, buildErr := builder.Build(ctx, w, files, cfg.MetadataDir, &notifierProgress{
		notifier:  o.notifier,
		vaultName: o.source.Name(),
	})
	closeErr := w.Close()
	if buildErr != nil || closeErr != nil {
		// Leave no partial archive behind.
		if delErr := w.Delete(); delErr != nil {
			o.logger.Warn().Err(delErr).Str("path", archivePath).Msg("could not remove partial archive")
		}
		return o.fail(fmt.Errorf("could not write archive: %w", errors.Join(buildErr, closeErr)))
	}

	if info, err := os.Stat(archivePath); err == nil {
		run.ArchiveSize = info.Size()
	}
	run.ArchivePath = archivePath
	run.FilesStored = res.Files + res.MetaEntries
	run.FilesSkipped = res.Skipped

	o.logger.Info().
		Str("path", archivePath).
		Str("size", units.HumanSize(float64(run.ArchiveSize))).
		Object("result", res).
		Float64("seconds", o.now().Sub(startTime).Seconds()).
		Msg("archive written")

	if cfg.SecondaryDir != "" {
		if err := o.copyToSecondary(archivePath, name, cfg.SecondaryDir); err != nil {
			// The primary archive is already durable; warn and move on.
			o.logger.Error().Err(err).Str("dest", cfg.SecondaryDir).Msg("could not copy archive to secondary destination")
			o.notifier.ShowTransient("Backup warning: could not copy archive to secondary destination", failureNoticeDuration)
		}
	}

	o.mu.Lock()
	o.state.LastBackup = o.now()
	state := o.state
	o.mu.Unlock()
	if err := o.store.SaveState(state); err != nil {
		o.logger.Warn().Err(err).Msg("could not persist backup state")
	}

	retention.Prune(cfg.BackupDir, cfg.KeepCount, o.logger)
	if cfg.SecondaryDir != "" {
		retention.Prune(cfg.SecondaryDir, cfg.KeepCountSecondary, o.logger)
	}

	o.notifier.Hide()
	if res.Partial {
		run.Outcome = history.OutcomePartial
		o.notifier.ShowTransient(fmt.Sprintf("Backup complete: %s (%d entries skipped)", name, res.Skipped), successNoticeDuration)
	} else {
		run.Outcome = history.OutcomeSuccess
		o.notifier.ShowTransient(fmt.Sprintf("Backup complete: %s", name), successNoticeDuration)
	}

	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.notifier.Hide()
	o.notifier.ShowTransient(fmt.Sprintf("Backup failed: %v", err), failureNoticeDuration)
	return err
}

func (o *Orchestrator) copyToSecondary(archivePath string, name string, secondaryDir string) error {
	if err := os.MkdirAll(secondaryDir, 0755); err != nil {
		return fmt.Errorf("could not create secondary backup directory: %w", err)
	}

	written, err := fileutils.CopyFile(archivePath, filepath.Join(secondaryDir, name))
	if err != nil {
		return err
	}

	o.logger.Info().
		Str("dest", secondaryDir).
		Str("size", units.HumanSize(float64(written))).
		Msg("copied archive to secondary destination")
	return nil
}

func (o *Orchestrator) recordRun(ctx context.Context, run *history.Run) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordRun(ctx, run); err != nil {
		o.logger.Warn().Err(err).Msg("could not record backup run")
	}
}

// notifierProgress maps build progress onto notifier updates.
type notifierProgress struct {
	notifier  *safeNotifier
	vaultName string
}

func (p *notifierProgress) FileStored(processed int, total int) {
	if total == 0 {
		return
	}
	p.notifier.UpdateProgress(fmt.Sprintf("Backing up %s... %d%% (%d/%d files)",
		p.vaultName, processed*100/total, processed, total))
}

func (p *notifierProgress) MetadataStarted() {
	p.notifier.UpdateProgress("Verifying backup...")
}
