package batch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNilRemover is returned when an EntityActor is built without a remover.
var ErrNilRemover = errors.New("entity actor requires a remover")

// EntityActor notifies an entity and then applies the remote removal.
// Remote failures are classified into the returned Outcome and never propagated.
type EntityActor struct {
	remover  Remover
	notifier Notifier
	marker   MarkerChecker
	reason   string
	message  string
	logger   zerolog.Logger
}

// ActorOption configures an EntityActor.
type ActorOption func(*EntityActor)

// WithNotifier sets the best-effort notifier and the message it sends.
func WithNotifier(n Notifier, message string) ActorOption {
	return func(a *EntityActor) {
		a.notifier = n
		a.message = message
	}
}

// WithMarkerChecker enables the live marker re-check before acting.
func WithMarkerChecker(m MarkerChecker) ActorOption {
	return func(a *EntityActor) { a.marker = m }
}

// WithActorLogger sets the logger used for notification and removal failures.
func WithActorLogger(l zerolog.Logger) ActorOption {
	return func(a *EntityActor) { a.logger = l }
}

// NewEntityActor creates an actor that removes entities with the given audit reason.
func NewEntityActor(remover Remover, reason string, opts ...ActorOption) (*EntityActor, error) {
	if remover == nil {
		return nil, ErrNilRemover
	}

	a := &EntityActor{
		remover: remover,
		reason:  reason,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Act applies the removal to e. It makes at most one remote mutating call.
func (a *EntityActor) Act(ctx context.Context, e Entity) Outcome {
	if e.HasMarker {
		return Skipped("entity holds the protected marker")
	}

	if a.marker != nil {
		has, err := a.marker.HasMarker(ctx, e)
		switch {
		case err != nil:
			a.logger.Warn().
				Err(err).
				Str("entity_id", e.ID).
				Msg("live marker check failed, acting on snapshot state")
		case has:
			a.logger.Debug().Str("entity_id", e.ID).Msg("entity gained the marker since the snapshot")
			return Skipped("entity gained the protected marker")
		}
	}

	// The notice has to go out first; the entity is unreachable once removed.
	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, e, a.message); err != nil {
			a.logger.Warn().
				Err(err).
				Str("entity_id", e.ID).
				Str("entity_name", e.Name).
				Msg("could not notify entity")
		}
	}

	if err := a.remover.RemoveEntity(ctx, e, a.reason); err != nil {
		a.logger.Error().
			Err(err).
			Str("entity_id", e.ID).
			Str("entity_name", e.Name).
			Msg("failed to remove entity")
		return Failed(err)
	}

	return Succeeded()
}
