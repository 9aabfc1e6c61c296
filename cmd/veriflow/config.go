package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veriflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("user config:    %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("project config: %s\n", p)
	}
	fmt.Println()

	key := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		key = "(set)"
	}
	fmt.Printf("anthropic.api_key:       %s\n", key)
	fmt.Printf("anthropic.model:         %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
	fmt.Printf("bedrock.enabled:         %t\n", cfg.Bedrock.Enabled)
	if cfg.Bedrock.Enabled {
		fmt.Printf("bedrock.region:          %s\n", cfg.Bedrock.Region)
		fmt.Printf("bedrock.profile:         %s\n", orDefault(cfg.Bedrock.Profile, "(default)"))
	}
	fmt.Printf("defaults.max_iterations: %d\n", cfg.Defaults.MaxIterations)
	fmt.Printf("defaults.max_retries:    %d\n", cfg.Defaults.MaxRetries)
	fmt.Printf("defaults.worker_wait:    %s\n", cfg.Defaults.WorkerWait)
	fmt.Printf("workspace.output_dir:    %s\n", cfg.Workspace.OutputDir)
	fmt.Printf("workspace.roster:        %s\n", orDefault(cfg.Workspace.Roster, "(built-in)"))
	fmt.Printf("workspace.db_path:       %s\n", orDefault(cfg.Workspace.DBPath, "(default)"))
	fmt.Printf("gates.quality_threshold: %.0f\n", cfg.Gates.QualityThreshold)
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
