package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"veriflow/internal/config"
	"veriflow/internal/state"
)

var (
	statusLimit  int
	statusEvents string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent coordination sessions",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of sessions to show")
	statusCmd.Flags().StringVar(&statusEvents, "events", "", "Show the event log for a session ID")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if statusEvents != "" {
		return printEvents(db, statusEvents)
	}

	sessions, err := db.ListSessions(statusLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	for _, s := range sessions {
		switch {
		case s.IsCompleted:
			color.Green("%s  %-9s  %.1f  %s", s.ID, s.Status, s.CompletionScore, s.Request)
		case s.Status == "active":
			color.Yellow("%s  %-9s  %.1f  %s", s.ID, s.Status, s.CompletionScore, s.Request)
		default:
			color.Red("%s  %-9s  %.1f  %s", s.ID, s.Status, s.CompletionScore, s.Request)
		}
	}
	return nil
}

func printEvents(db *state.DB, sessionID string) error {
	events, err := db.SessionEvents(sessionID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("no events recorded for session %s\n", sessionID)
		return nil
	}
	for _, ev := range events {
		fmt.Printf("%s  %-22s  %-12s  %s\n", ev.At.Format("15:04:05"), ev.Type, ev.Stage, ev.Detail)
	}
	return nil
}
