// Package cleanup removes guild members that never received the marker role.
//
// A run has two phases. Prepare resolves the role and takes the member
// snapshot; nothing is mutated and any failure is a precondition failure.
// Execute drives the snapshot through the batch coordinator, then recounts
// the members still lacking the role and records the run.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/guildsweep/internal/config"
	"github.com/rshade/guildsweep/internal/discord"
	"github.com/rshade/guildsweep/internal/engine/batch"
	"github.com/rshade/guildsweep/internal/history"
	"github.com/rshade/guildsweep/internal/metrics"
)

// ErrRoleNotFound is returned by Prepare when the marker role does not exist.
var ErrRoleNotFound = errors.New("marker role not found")

// RemainingUnknown marks a Report whose post-run recount failed or was skipped.
const RemainingUnknown = -1

// Options control a cleanup run.
type Options struct {
	RoleName         string
	ChunkSize        int
	RateLimit        time.Duration
	ProgressInterval time.Duration
	KickReason       string
	NoticeTitle      string
	NoticeMessage    string
	IncludeBots      bool
	DryRun           bool
	MetricsTextfile  string
}

// OptionsFromConfig maps the loaded configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RoleName:         cfg.Cleanup.MarkerRole,
		ChunkSize:        cfg.Cleanup.ChunkSize,
		RateLimit:        cfg.Cleanup.RateLimit,
		ProgressInterval: cfg.Cleanup.ProgressInterval,
		KickReason:       cfg.Cleanup.KickReason,
		NoticeTitle:      cfg.Cleanup.NoticeTitle,
		NoticeMessage:    cfg.Cleanup.NoticeMessage(),
		IncludeBots:      cfg.Cleanup.IncludeBots,
		DryRun:           cfg.Cleanup.DryRun,
		MetricsTextfile:  cfg.Metrics.Textfile,
	}
}

// HistoryStore records finished runs.
type HistoryStore interface {
	RecordRun(ctx context.Context, run *history.Run) error
}

// Plan is the immutable input to Execute.
type Plan struct {
	Role     discord.Role
	Entities []batch.Entity
	// Eligible is the number of entities lacking the role at snapshot time.
	Eligible int
}

// Report is the outcome of Execute.
type Report struct {
	RunID   string
	GuildID string
	Role    discord.Role
	Summary batch.Summary
	// Eligible is the number of members lacking the role before the run.
	Eligible int
	// Remaining is the number lacking the role after the run, or RemainingUnknown.
	Remaining  int
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Service runs cleanups against one guild.
type Service struct {
	guild    Guild
	opts     Options
	store    HistoryStore
	recorder *metrics.Recorder
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHistory records every executed run in store.
func WithHistory(store HistoryStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithMetrics observes runs on recorder.
func WithMetrics(recorder *metrics.Recorder) ServiceOption {
	return func(s *Service) { s.recorder = recorder }
}

// WithClock sets the clock used for rate limiting and timestamps.
func WithClock(clock clockwork.Clock) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a cleanup service for guild.
func NewService(guild Guild, opts Options, svcOpts ...ServiceOption) (*Service, error) {
	if guild == nil {
		return nil, fmt.Errorf("%w: guild client cannot be nil", batch.ErrPrecondition)
	}
	if opts.RoleName == "" {
		return nil, fmt.Errorf("%w: marker role name cannot be empty", batch.ErrPrecondition)
	}

	s := &Service{
		guild:  guild,
		opts:   opts,
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
	}
	for _, o := range svcOpts {
		o(s)
	}
	return s, nil
}

// Prepare resolves the marker role and snapshots the guild members. A
// failure is recorded as a failed run.
func (s *Service) Prepare(ctx context.Context) (*Plan, error) {
	startedAt := s.clock.Now()
	plan, err := s.prepare(ctx)
	if err != nil {
		report := s.newReport(ulid.Make().String(), discord.Role{Name: s.opts.RoleName}, startedAt)
		s.fail(ctx, report, err, s.logger.With().Str("run_id", report.RunID).Logger())
		return nil, err
	}
	return plan, nil
}

func (s *Service) prepare(ctx context.Context) (*Plan, error) {
	role, err := s.guild.RoleByName(ctx, s.opts.RoleName)
	if errors.Is(err, discord.ErrRoleNotFound) {
		return nil, fmt.Errorf("%w: %w: %q", batch.ErrPrecondition, ErrRoleNotFound, s.opts.RoleName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: resolving role %q: %w", batch.ErrPrecondition, s.opts.RoleName, err)
	}

	source := memberSource{guild: s.guild, roleID: role.ID, includeBots: s.opts.IncludeBots}
	entities, err := source.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing members: %w", batch.ErrPrecondition, err)
	}

	plan := &Plan{
		Role:     role,
		Entities: entities,
		Eligible: countMissingRole(entities),
	}
	s.logger.Info().
		Str("role", describeRole(role)).
		Int("members", len(entities)).
		Int("eligible", plan.Eligible).
		Msg("cleanup prepared")
	return plan, nil
}

// Execute runs plan to completion or until gate is signalled. Per-member
// failures are reported in the Summary. History and metrics failures are
// logged and do not fail the run.
func (s *Service) Execute(
	ctx context.Context,
	plan *Plan,
	gate *batch.CancellationGate,
	sink batch.ProgressSink,
) (*Report, error) {
	runID := ulid.Make().String()
	log := s.logger.With().Str("run_id", runID).Logger()

	if plan == nil {
		err := fmt.Errorf("%w: plan cannot be nil", batch.ErrPrecondition)
		s.fail(ctx, s.newReport(runID, discord.Role{Name: s.opts.RoleName}, s.clock.Now()), err, log)
		return nil, err
	}

	report := s.newReport(runID, plan.Role, s.clock.Now())
	report.Eligible = plan.Eligible

	coordinator, err := s.newCoordinator(plan, sink, log)
	if err != nil {
		s.fail(ctx, report, err, log)
		return nil, err
	}

	summary, err := coordinator.Run(ctx, gate, plan.Entities)
	if err != nil {
		s.fail(ctx, report, err, log)
		return nil, err
	}
	report.Summary = summary
	report.FinishedAt = s.clock.Now()

	// A cancelled ctx means in-flight requests were aborted on purpose; the
	// recount is skipped and the run is still recorded.
	if ctx.Err() == nil {
		report.Remaining = s.recount(ctx, plan.Role.ID, log)
	}
	s.persist(ctx, report.historyRun(), log)
	return report, nil
}

func (s *Service) newReport(runID string, role discord.Role, startedAt time.Time) *Report {
	return &Report{
		RunID:     runID,
		GuildID:   s.guild.GuildID(),
		Role:      role,
		Remaining: RemainingUnknown,
		DryRun:    s.opts.DryRun,
		StartedAt: startedAt,
	}
}

func (s *Service) newCoordinator(plan *Plan, sink batch.ProgressSink, log zerolog.Logger) (*batch.Coordinator, error) {
	actorOpts := []batch.ActorOption{
		batch.WithMarkerChecker(roleChecker{guild: s.guild, roleID: plan.Role.ID}),
		batch.WithActorLogger(log),
	}

	var remover batch.Remover = kicker{guild: s.guild}
	if s.opts.DryRun {
		remover = dryRunRemover{logger: log}
	} else {
		actorOpts = append(actorOpts,
			batch.WithNotifier(dmNotifier{guild: s.guild, title: s.opts.NoticeTitle}, s.opts.NoticeMessage))
	}

	actor, err := batch.NewEntityActor(remover, s.opts.KickReason, actorOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", batch.ErrPrecondition, err)
	}

	chunkSize := s.opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = batch.DefaultChunkSize
	}
	limiter := batch.NewRateLimiter(s.opts.RateLimit, s.clock)
	processor, err := batch.NewProcessor(chunkSize, actor, limiter, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", batch.ErrPrecondition, err)
	}

	coordOpts := []batch.CoordinatorOption{
		batch.WithClock(s.clock),
		batch.WithLogger(log),
	}
	if s.opts.ProgressInterval > 0 {
		coordOpts = append(coordOpts, batch.WithProgressInterval(s.opts.ProgressInterval))
	}
	if s.recorder != nil {
		coordOpts = append(coordOpts, batch.WithRecorder(s.recorder))
	}
	return batch.NewCoordinator(processor, sink, coordOpts...), nil
}

// recount lists the guild again and counts members still lacking the role.
func (s *Service) recount(ctx context.Context, roleID string, log zerolog.Logger) int {
	source := memberSource{guild: s.guild, roleID: roleID, includeBots: s.opts.IncludeBots}
	entities, err := source.ListEntities(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not recount members after cleanup")
		return RemainingUnknown
	}
	return countMissingRole(entities)
}

// fail records a run that ended with err before producing a summary.
func (s *Service) fail(ctx context.Context, report *Report, err error, log zerolog.Logger) {
	if s.recorder != nil {
		s.recorder.ObserveError()
	}
	report.FinishedAt = s.clock.Now()
	run := report.historyRun()
	run.Status = history.RunStatusFailed
	run.Error = err.Error()
	s.persist(ctx, run, log)
}

// persist writes run to history and exports metrics. Both outlive ctx: a run
// whose requests were aborted still kicked members and must be recorded.
func (s *Service) persist(ctx context.Context, run *history.Run, log zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if s.store != nil {
		if err := s.store.RecordRun(ctx, run); err != nil {
			log.Error().Err(err).Msg("failed to record run history")
		}
	}
	if s.recorder != nil && s.opts.MetricsTextfile != "" {
		if err := s.recorder.WriteTextfile(s.opts.MetricsTextfile); err != nil {
			log.Warn().Err(err).Msg("failed to write metrics textfile")
		}
	}
}

// Status returns the history status of the report.
func (r *Report) Status() history.RunStatus {
	if r.Summary.Cancelled {
		return history.RunStatusCancelled
	}
	return history.RunStatusCompleted
}

func (r *Report) historyRun() *history.Run {
	failures := make([]history.Failure, 0, len(r.Summary.Failed))
	for _, e := range r.Summary.Failed {
		failures = append(failures, history.Failure{EntityID: e.ID, EntityName: e.Name})
	}
	return &history.Run{
		ID:         r.RunID,
		GuildID:    r.GuildID,
		Role:       r.Role.Name,
		Status:     r.Status(),
		DryRun:     r.DryRun,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      r.Summary.Total,
		Processed:  r.Summary.Processed,
		Succeeded:  r.Summary.Succeeded,
		Skipped:    r.Summary.Skipped,
		Failed:     len(r.Summary.Failed),
		Remaining:  r.Remaining,
		Elapsed:    r.Summary.Elapsed,
		Failures:   failures,
	}
}
