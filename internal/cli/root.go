package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/guildsweep/internal/config"
	"github.com/rshade/guildsweep/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// rootState is shared by the root command and its subcommands.
type rootState struct {
	configPath string
	lookupEnv  func(string) (string, bool)
	cfg        *config.Config
	logResult  *logging.LogPathResult

	// interactive reports whether prompts and the progress UI may be shown.
	interactive func() bool
}

// NewRootCmd creates the root Cobra command for the guildsweep CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	return newRootCmd(ver, lookupEnv, func() bool {
		return isTerminal(os.Stdin) && isTerminal(os.Stdout)
	})
}

func newRootCmd(ver string, lookupEnv func(string) (string, bool), interactive func() bool) *cobra.Command {
	state := &rootState{lookupEnv: lookupEnv, interactive: interactive}

	cmd := &cobra.Command{
		Use:           "guildsweep",
		Short:         "Discord guild maintenance tool",
		Long:          "guildsweep: remove guild members who never completed onboarding, safely and cancellably",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(state.configPath, state.lookupEnv)
			if err != nil {
				return &ExitError{Code: ExitPrecondition, Err: fmt.Errorf("loading config: %w", err)}
			}
			state.cfg = cfg

			result := setupLogging(cmd, cfg)
			state.logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if state.logResult != nil {
				return state.logResult.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&state.configPath, "config", "",
		"config file (default ~/.guildsweep/config.yaml)")
	cmd.AddCommand(newCleanupCmd(state), newConfigCmd(state))

	return cmd
}

const rootCmdExample = `  # Preview a cleanup without kicking anyone
  guildsweep cleanup unconfirmed --dry-run

  # Kick members lacking the "Member" role, one every 5 seconds
  guildsweep cleanup unconfirmed

  # Use a different marker role and skip the confirmation prompt
  guildsweep cleanup unconfirmed --role Verified --yes

  # Show recent runs
  guildsweep cleanup history --limit 5`

// newCleanupCmd creates the cleanup command group.
func newCleanupCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{Use: "cleanup", Short: "Guild cleanup commands"}
	cmd.AddCommand(newCleanupUnconfirmedCmd(state), newCleanupHistoryCmd(state))
	return cmd
}
