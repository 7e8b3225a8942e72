package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/guildsweep/internal/config"
)

func newConfigCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage the guildsweep configuration file"}
	cmd.AddCommand(newConfigInitCmd(state), newConfigValidateCmd(state))
	return cmd
}

// newConfigInitCmd writes a config file with default values.
func newConfigInitCmd(state *rootState) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a configuration file with default values at ~/.guildsweep/config.yaml,
or at the path given with --config.

The bot token is never written. Set discord.token_file or GUILDSWEEP_TOKEN.`,
		Example: `  # Create the default configuration
  guildsweep config init

  # Overwrite an existing configuration
  guildsweep config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := state.configPath
			if path == "" {
				path = config.DefaultPath()
			}

			if !force {
				_, err := os.Stat(path)
				if err == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				}
				if !os.IsNotExist(err) {
					return fmt.Errorf("cannot access config path %s: %w", path, err)
				}
			}

			if err := config.Save(config.New(), path); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			cmd.Printf("Configuration initialized at %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")

	return cmd
}
