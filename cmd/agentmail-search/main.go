// Command agentmail-search operates the relational store, full-text index,
// and flake-triage pipeline for the agent-mail search core.
//
// # File Index
//
//   - main.go            - entry point, rootCmd, global flags, init()
//   - cmd_index.go       - index rebuild/check/repair
//   - cmd_flake_triage.go - flake-triage scan/repro
//   - cmd_archive.go     - archive reconstruct
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentmail-search/internal/config"
	"agentmail-search/internal/logging"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "agentmail-search",
	Short: "Search, index, and triage tooling for the agent-mail message corpus",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			loaded.Logging.DebugMode = true
			loaded.Logging.Level = "debug"
		}
		if err := logging.Initialize(logging.Config{
			DebugMode:  loaded.Logging.DebugMode,
			Categories: loaded.Logging.Categories,
			Level:      loaded.Logging.Level,
			JSONFormat: loaded.Logging.JSONFormat,
		}); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "agentmail-search.yaml", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")

	rootCmd.AddCommand(indexCmd, flakeTriageCmd, archiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
