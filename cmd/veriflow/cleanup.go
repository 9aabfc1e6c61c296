package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"veriflow/internal/config"
	"veriflow/internal/state"
)

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old finished sessions from the state database",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "Purge finished sessions older than this")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Workspace.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate state db: %w", err)
	}

	n, err := db.PurgeOldSessions(cleanupOlderThan)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d session(s)\n", n)
	return nil
}
