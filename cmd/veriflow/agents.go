package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"veriflow/internal/config"
	"veriflow/internal/registry"
	"veriflow/pkg/models"
)

var agentsRoster string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the worker roster and capability contracts",
	RunE:  runAgents,
}

func init() {
	agentsCmd.Flags().StringVar(&agentsRoster, "roster", "", "Path to an agents.yaml roster file")
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := registry.New()
	rosterPath := cfg.Workspace.Roster
	if agentsRoster != "" {
		rosterPath = agentsRoster
	}
	if rosterPath != "" {
		if err := reg.LoadRoster(rosterPath); err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
	} else {
		reg.DefaultRoster()
	}

	profiles := reg.All()
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })

	for _, p := range profiles {
		color.Cyan("%s (%s)", p.ID, p.Specialty)
		fmt.Printf("  capabilities: %s\n", joinTypes(p.Capabilities))
		if len(p.PreferredTypes) > 0 {
			fmt.Printf("  prefers:      %s\n", joinTypes(p.PreferredTypes))
		}
		if len(p.BlacklistedTypes) > 0 {
			fmt.Printf("  blacklists:   %s\n", joinTypes(p.BlacklistedTypes))
		}
		if len(p.DenyKeywords) > 0 {
			fmt.Printf("  denies:       %s\n", strings.Join(p.DenyKeywords, ", "))
		}
	}
	return nil
}

func joinTypes(types []models.SubtaskType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
