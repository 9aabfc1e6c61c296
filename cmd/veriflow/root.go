package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "veriflow",
	Short: "Design and verification workflow coordinator",
	Long: `Veriflow coordinates hardware design requests across specialized
worker agents. Each request is classified, split into design and
verification phases when needed, and routed to workers whose capability
contracts permit the work.

Every worker result is verified against real evidence before the
pipeline advances:
- claimed artifact files must exist on disk
- tool invocations must have actually run
- claimed module names must match the real design
- fabricated claims are flagged and block stage advancement`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}
