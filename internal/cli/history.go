package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/guildsweep/internal/history"
	"github.com/rshade/guildsweep/internal/tui"
)

const defaultHistoryLimit = 10

func newCleanupHistoryCmd(state *rootState) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded cleanup runs",
		Example: `  # Last ten runs
  guildsweep cleanup history

  # Details, including failed members, of one run
  guildsweep cleanup history --run 01JABCDEF0123456789XYZABCD`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := state.cfg.History.Path
			if path == "" {
				return &ExitError{Code: ExitPrecondition, Err: errors.New("run history is disabled (history.path is empty)")}
			}

			store, err := history.Open(path)
			if err != nil {
				return fmt.Errorf("opening run history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				run, getErr := store.GetRun(cmd.Context(), runID)
				if getErr != nil {
					return getErr
				}
				_, _ = fmt.Fprint(out, tui.RenderRun(run))
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			logger.Debug().Int("runs", len(runs)).Msg("listed run history")
			_, _ = fmt.Fprint(out, tui.RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the details of one run")

	return cmd
}
