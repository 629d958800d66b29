package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultsnap/vaultsnap/config"
	"github.com/vaultsnap/vaultsnap/history"
	"github.com/vaultsnap/vaultsnap/orchestrator"
	"github.com/vaultsnap/vaultsnap/vault"
)

func backupCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := config.LoadFromFile(args.Backup.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	hist, err := openHistory(args.Backup.Database, logger)
	if err != nil {
		return err
	}

	startTime := time.Now()
	logger.Info().Object("config", *cfg).Msg("starting backup")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("backup cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("backup done")
		}
	}()

	orch, err := newOrchestrator(cfg, statePath(args.Backup.Config, args.Backup.State), hist, logger)
	if err != nil {
		return err
	}

	return orch.CreateBackup(ctx)
}

// statePath resolves the schedule state file location: an explicit flag
// wins, otherwise it sits next to the config file.
func statePath(configPath string, override string) string {
	if override != "" {
		return override
	}
	return configPath + ".state"
}

func openHistory(dbPath string, logger zerolog.Logger) (*history.History, error) {
	if dbPath == "" {
		return nil, nil
	}

	cli, err := newSQLite(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	return &history.History{Cli: cli, Logger: logger}, nil
}

func newOrchestrator(cfg *config.Config, statePath string, hist *history.History, logger zerolog.Logger) (*orchestrator.Orchestrator, error) {
	store := config.NewFileStore(statePath)
	state, err := store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("could not load backup state: %w", err)
	}

	return orchestrator.New(orchestrator.Params{
		Config:   *cfg,
		State:    state,
		Source:   vault.NewFSSource(cfg.VaultDir, cfg.VaultName, logger),
		Store:    store,
		Notifier: orchestrator.NewLogNotifier(logger),
		History:  hist,
		Logger:   logger,
	}), nil
}
