package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultsnap/vaultsnap/config"
	"github.com/vaultsnap/vaultsnap/retention"
)

func pruneCommand(args Command, logger zerolog.Logger) error {
	cfg, err := config.LoadFromFile(args.Prune.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	startTime := time.Now()
	logger.Info().Msg("starting pruning old archives")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		logger.Info().Float64("seconds", tookSeconds).Msg("pruning done")
	}()

	pruneDestinations(cfg, logger)
	return nil
}

func pruneDestinations(cfg *config.Config, logger zerolog.Logger) {
	if cfg.BackupDir == "" {
		logger.Warn().Msg("no backup directory configured, nothing to prune")
		return
	}

	stats := retention.Prune(cfg.BackupDir, cfg.KeepCount, logger)
	logger.Info().Str("dir", cfg.BackupDir).Object("stats", stats).Msg("pruned primary destination")

	if cfg.SecondaryDir != "" {
		stats = retention.Prune(cfg.SecondaryDir, cfg.KeepCountSecondary, logger)
		logger.Info().Str("dir", cfg.SecondaryDir).Object("stats", stats).Msg("pruned secondary destination")
	}
}
