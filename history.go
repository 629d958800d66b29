package main

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
)

func historyCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	hist, err := openHistory(args.History.Database, logger)
	if err != nil {
		return err
	}

	runs, err := hist.IterRuns(ctx, args.History.Limit)
	if err != nil {
		return fmt.Errorf("could not read backup runs: %w", err)
	}

	var count int
	for run := range runs {
		count++
		fmt.Printf("%s  %-8s  %s  %s (%d files",
			run.StartedAt.Local().Format(time.RFC3339),
			run.Outcome,
			run.ArchivePath,
			units.HumanSize(float64(run.ArchiveSize)),
			run.FilesStored,
		)
		if run.FilesSkipped > 0 {
			fmt.Printf(", %d skipped", run.FilesSkipped)
		}
		fmt.Printf(")\n")
		if run.Error != "" {
			fmt.Printf("    error: %s\n", run.Error)
		}
	}
	if count == 0 {
		fmt.Println("no backup runs recorded")
	}

	return nil
}
