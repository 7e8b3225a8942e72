package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/guildsweep/internal/config"
)

func newConfigValidateCmd(state *rootState) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the merged configuration (defaults, config file and GUILDSWEEP_*
environment) and checks that the bot token can be resolved.`,
		Example: `  # Validate current configuration
  guildsweep config validate

  # Validate and show the effective settings
  guildsweep config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, state.cfg, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show the effective settings")

	return cmd
}

func runConfigValidate(cmd *cobra.Command, cfg *config.Config, verbose bool) error {
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: ExitPrecondition, Err: fmt.Errorf("configuration validation failed: %w", err)}
	}
	if _, err := cfg.ResolveToken(); err != nil {
		return &ExitError{Code: ExitPrecondition, Err: fmt.Errorf("configuration validation failed: %w", err)}
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}
	return nil
}

// printVerboseDetails prints the effective settings. The token is never shown.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  API base URL: %s\n", cfg.Discord.APIBaseURL)
	cmd.Printf("  Guild: %s\n", cfg.Discord.GuildID)
	if cfg.Discord.TokenFile != "" {
		cmd.Printf("  Token file: %s\n", cfg.Discord.TokenFile)
	}
	cmd.Printf("  Marker role: %s\n", cfg.Cleanup.MarkerRole)
	cmd.Printf("  Chunk size: %d\n", cfg.Cleanup.ChunkSize)
	cmd.Printf("  Rate limit interval: %s\n", cfg.Cleanup.RateLimit)
	cmd.Printf("  Progress interval: %s\n", cfg.Cleanup.ProgressInterval)
	cmd.Printf("  Include bots: %t\n", cfg.Cleanup.IncludeBots)
	cmd.Printf("  Dry run: %t\n", cfg.Cleanup.DryRun)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	cmd.Printf("  History database: %s\n", cfg.History.Path)
	if cfg.Metrics.Textfile != "" {
		cmd.Printf("  Metrics textfile: %s\n", cfg.Metrics.Textfile)
	}
}
