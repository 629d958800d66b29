package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vaultsnap/vaultsnap/config"
	"github.com/vaultsnap/vaultsnap/fileutils"
	"github.com/vaultsnap/vaultsnap/scheduler"
)

func daemonCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := config.LoadFromFile(args.Daemon.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	hist, err := openHistory(args.Daemon.Database, logger)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(cfg, statePath(args.Daemon.Config, args.Daemon.State), hist, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Params{
		Runner:     orch,
		Interval:   cfg.Interval(),
		LastBackup: orch.LastBackup(),
		Logger:     logger,
	})

	sweeper := newRetentionSweeper(orch.Configuration, logger)
	defer sweeper.Stop()
	if err := sweeper.Reschedule(cfg.SweepSchedule); err != nil {
		return err
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	startConfigFileWatcher(ctx, args.Daemon.Config, logger, ticker, func(cfg *config.Config) {
		orch.SetConfiguration(*cfg)
		sched.RescheduleFromNow(cfg.Interval())
		if err := sweeper.Reschedule(cfg.SweepSchedule); err != nil {
			logger.Error().Err(err).Msg("could not reschedule retention sweep")
		}
	})

	sched.Start(ctx)
	defer sched.Stop()

	logger.Info().Object("config", *cfg).Msg("backup service running")
	<-ctx.Done()

	return nil
}

// retentionSweeper runs an extra prune pass on a cron expression, for
// setups where archives are dropped into the destinations by other means
// between backups. Each pass reads the configuration at fire time, so
// destination and keep-count edits apply without a restart.
type retentionSweeper struct {
	cfg    func() config.Config
	logger zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func newRetentionSweeper(cfg func() config.Config, logger zerolog.Logger) *retentionSweeper {
	return &retentionSweeper{cfg: cfg, logger: logger}
}

// Reschedule replaces the sweep schedule. An empty schedule disables the
// sweep.
func (s *retentionSweeper) Reschedule(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	if schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		cfg := s.cfg()
		s.logger.Info().Str("schedule", schedule).Msg("running retention sweep")
		pruneDestinations(&cfg, s.logger)
	})
	if err != nil {
		return fmt.Errorf("could not schedule retention sweep: %w", err)
	}

	c.Start()
	s.cron = c
	s.logger.Info().Str("schedule", schedule).Msg("retention sweep scheduled")
	return nil
}

func (s *retentionSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, ticker.C, func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}
