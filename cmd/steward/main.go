package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hellblazer/steward/pkg/config"
	"github.com/hellblazer/steward/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Steward - warm worker pool supervisor for agent sessions",
	Long: `Steward keeps a pool of pre-warmed agent worker containers ready to
claim, supervises the shared vector-store service they depend on, and
reconciles its registry against the live container runtime.

All state lives under one data directory; one daemon owns it at a time.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Admin commands surface warnings only; start re-initializes
		// logging from its configuration
		log.Init(log.Config{Level: "warn"})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Steward version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scaleCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// loadConfig builds the effective configuration for a subcommand:
// defaults, then the --config file, then STEWARD_* overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	return cfg, nil
}
