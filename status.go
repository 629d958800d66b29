package main

import (
	"fmt"
	"time"

	"github.com/vaultsnap/vaultsnap/config"
	"github.com/vaultsnap/vaultsnap/scheduler"
)

func statusCommand(args Command) error {
	cfg, err := config.LoadFromFile(args.Status.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	store := config.NewFileStore(statePath(args.Status.Config, args.Status.State))
	state, err := store.LoadState()
	if err != nil {
		return fmt.Errorf("could not load backup state: %w", err)
	}

	now := time.Now()
	nextDue := scheduler.Plan(state.LastBackup, cfg.Interval(), now)

	fmt.Printf("vault:        %s\n", cfg.VaultDir)
	fmt.Printf("destination:  %s\n", cfg.BackupDir)
	if state.LastBackup.IsZero() {
		fmt.Printf("last backup:  never\n")
	} else {
		fmt.Printf("last backup:  %s\n", state.LastBackup.Local().Format(time.RFC1123))
	}
	fmt.Printf("next due:     %s\n", nextDue.Local().Format(time.RFC1123))
	fmt.Printf("remaining:    %s\n", nextDue.Sub(now).Round(time.Second))
	return nil
}
