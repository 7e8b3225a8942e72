package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/guildsweep/internal/cleanup"
	"github.com/rshade/guildsweep/internal/config"
	"github.com/rshade/guildsweep/internal/discord"
	"github.com/rshade/guildsweep/internal/engine/batch"
	"github.com/rshade/guildsweep/internal/history"
	"github.com/rshade/guildsweep/internal/logging"
	"github.com/rshade/guildsweep/internal/metrics"
	"github.com/rshade/guildsweep/internal/tui"
)

const (
	confirmQuestion = "Please confirm that you want to purge all non-members from the server."
	maxReportWidth  = 100
)

// errNotInteractive is returned when confirmation is needed but no terminal is attached.
var errNotInteractive = errors.New("refusing to run without --yes when not attached to a terminal")

// cleanupFlags holds the per-run overrides of the cleanup config section.
type cleanupFlags struct {
	yes              bool
	dryRun           bool
	plain            bool
	role             string
	chunkSize        int
	rateLimit        time.Duration
	progressInterval time.Duration
}

func newCleanupUnconfirmedCmd(state *rootState) *cobra.Command {
	var flags cleanupFlags

	cmd := &cobra.Command{
		Use:   "unconfirmed",
		Short: "Kick every member lacking the marker role",
		Long: `Kicks every member that does not hold the marker role, after sending each
one a notice. Members are processed in chunks at a fixed rate.

Press c or Ctrl+C (Ctrl+C in --plain mode) to stop after the current member.
Members already kicked stay kicked. In --plain mode a second Ctrl+C also
aborts in-flight requests.`,
		Example: `  # Dry run with the default marker role
  guildsweep cleanup unconfirmed --dry-run

  # Faster run without the progress UI
  guildsweep cleanup unconfirmed --plain --rate-limit 2s --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanupUnconfirmed(cmd, state, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "log what would be kicked without notifying or kicking anyone")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "print progress lines instead of the interactive view")
	cmd.Flags().StringVar(&flags.role, "role", "", "marker role name (overrides cleanup.marker_role)")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 0, "members per chunk, 1-1000 (overrides cleanup.chunk_size)")
	cmd.Flags().DurationVar(&flags.rateLimit, "rate-limit", 0,
		"minimum interval between kicks (overrides cleanup.rate_limit_interval)")
	cmd.Flags().DurationVar(&flags.progressInterval, "progress-interval", 0,
		"progress refresh interval (overrides cleanup.progress_interval)")

	return cmd
}

// applyCleanupFlags copies explicitly set flags onto the loaded config.
func applyCleanupFlags(cmd *cobra.Command, cfg *config.Config, flags cleanupFlags) {
	f := cmd.Flags()
	if f.Changed("dry-run") {
		cfg.Cleanup.DryRun = flags.dryRun
	}
	if f.Changed("role") {
		cfg.Cleanup.MarkerRole = flags.role
	}
	if f.Changed("chunk-size") {
		cfg.Cleanup.ChunkSize = flags.chunkSize
	}
	if f.Changed("rate-limit") {
		cfg.Cleanup.RateLimit = flags.rateLimit
	}
	if f.Changed("progress-interval") {
		cfg.Cleanup.ProgressInterval = flags.progressInterval
	}
}

func runCleanupUnconfirmed(cmd *cobra.Command, state *rootState, flags cleanupFlags) error {
	ctx := cmd.Context()
	cfg := state.cfg
	out := cmd.OutOrStdout()
	log := logging.ComponentLogger(logger, "cleanup")

	applyCleanupFlags(cmd, cfg, flags)
	if err := cfg.Validate(); err != nil {
		return renderCleanupFailure(cmd, fmt.Errorf("%w: %w", batch.ErrPrecondition, err))
	}
	token, err := cfg.ResolveToken()
	if err != nil {
		return renderCleanupFailure(cmd, fmt.Errorf("%w: %w", batch.ErrPrecondition, err))
	}

	client, err := discord.NewClient(cfg.Discord.APIBaseURL, token, cfg.Discord.GuildID,
		discord.WithLogger(logging.ComponentLogger(logger, "discord")))
	if err != nil {
		return renderCleanupFailure(cmd, fmt.Errorf("%w: %w", batch.ErrPrecondition, err))
	}

	svcOpts := []cleanup.ServiceOption{
		cleanup.WithMetrics(metrics.NewRecorder()),
		cleanup.WithLogger(log),
	}
	if cfg.History.Path != "" {
		store, openErr := history.Open(cfg.History.Path)
		if openErr != nil {
			log.Warn().Err(openErr).Str("path", cfg.History.Path).Msg("run history disabled")
		} else {
			defer store.Close()
			svcOpts = append(svcOpts, cleanup.WithHistory(store))
		}
	}

	svc, err := cleanup.NewService(client, cleanup.OptionsFromConfig(cfg), svcOpts...)
	if err != nil {
		return renderCleanupFailure(cmd, err)
	}

	plan, err := svc.Prepare(ctx)
	if err != nil {
		return renderCleanupFailure(cmd, err)
	}
	_, _ = fmt.Fprint(out, tui.RenderPlan(plan, cfg.Cleanup.DryRun))

	interactive := state.interactive()
	if !flags.yes {
		if !interactive {
			return renderCleanupFailure(cmd, fmt.Errorf("%w: %w", batch.ErrPrecondition, errNotInteractive))
		}
		if res := Confirm(out, cmd.InOrStdin(), confirmQuestion); !res.Accepted {
			_, _ = fmt.Fprintln(out, tui.DeclinedMessage)
			return nil
		}
	}

	gate := batch.NewCancellationGate(ctx)
	defer gate.Release()

	var report *cleanup.Report
	if interactive && !flags.plain {
		report, err = runInteractive(ctx, cmd, svc, plan, gate, cfg.Cleanup.DryRun)
	} else {
		report, err = runPlain(ctx, cmd.ErrOrStderr(), svc, plan, gate)
	}
	if err != nil {
		return renderCleanupFailure(cmd, err)
	}

	_, _ = fmt.Fprint(out, tui.RenderReport(report, reportWidth(interactive)))
	return nil
}

// runPlain executes the plan with line-based progress. The first SIGINT or
// SIGTERM signals the gate; the second also cancels in-flight requests.
func runPlain(
	ctx context.Context,
	w io.Writer,
	svc *cleanup.Service,
	plan *cleanup.Plan,
	gate *batch.CancellationGate,
) (*cleanup.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The reporter and the signal watcher share w.
	w = &syncWriter{w: w}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go watchSignals(sigCh, done, gate, cancel, w)

	return svc.Execute(ctx, plan, gate, tui.NewPlainSink(w))
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func watchSignals(
	sigCh <-chan os.Signal,
	done <-chan struct{},
	gate *batch.CancellationGate,
	cancel context.CancelFunc,
	w io.Writer,
) {
	signalled := false
	for {
		select {
		case <-done:
			return
		case sig := <-sigCh:
			if !signalled {
				signalled = true
				gate.Signal()
				logger.Info().Str("signal", sig.String()).Msg("cancellation requested")
				_, _ = fmt.Fprintln(w, "Cancelling ... press Ctrl+C again to abort in-flight requests")
				continue
			}
			logger.Warn().Str("signal", sig.String()).Msg("aborting in-flight requests")
			cancel()
			return
		}
	}
}

// runInteractive executes the plan behind the Bubble Tea progress view.
func runInteractive(
	ctx context.Context,
	cmd *cobra.Command,
	svc *cleanup.Service,
	plan *cleanup.Plan,
	gate *batch.CancellationGate,
	dryRun bool,
) (*cleanup.Report, error) {
	title := fmt.Sprintf("Kicking members without the %s role", plan.Role.Name)
	if dryRun {
		title = "Dry run: " + title
	}

	model := tui.NewProgressModel(title, len(plan.Entities), gate.Signal)
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)

	type result struct {
		report *cleanup.Report
		err    error
	}
	results := make(chan result, 1)
	go func() {
		report, err := svc.Execute(ctx, plan, gate, tui.NewProgramSink(program))
		if err != nil {
			program.Quit()
		}
		results <- result{report: report, err: err}
	}()

	if _, err := program.Run(); err != nil {
		// Without the UI there is no way to cancel, so stop at the next member.
		gate.Signal()
		logger.Warn().Err(err).Msg("progress view stopped")
	}

	res := <-results
	return res.report, res.err
}

// renderCleanupFailure prints err and maps it to an exit code.
func renderCleanupFailure(cmd *cobra.Command, err error) error {
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), tui.RenderFailure(err))
	logger.Error().Err(err).Msg("cleanup failed")

	code := ExitFailure
	if errors.Is(err, batch.ErrPrecondition) {
		code = ExitPrecondition
	}
	return &ExitError{Code: code, Err: err, Silent: true}
}

func reportWidth(interactive bool) int {
	if !interactive || !isTerminal(os.Stdout) {
		return 0
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return min(w, maxReportWidth)
}
