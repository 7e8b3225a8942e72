package cleanup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rshade/guildsweep/internal/discord"
	"github.com/rshade/guildsweep/internal/engine/batch"
)

// Guild is the subset of the Discord client used by the cleanup.
type Guild interface {
	GuildID() string
	RoleByName(ctx context.Context, name string) (discord.Role, error)
	Members(ctx context.Context) ([]discord.Member, error)
	Member(ctx context.Context, userID string) (discord.Member, error)
	KickMember(ctx context.Context, userID, reason string) error
	SendDirectMessage(ctx context.Context, userID string, msg discord.Message) error
}

// memberSource lists guild members as batch entities. The marker is the
// configured role.
type memberSource struct {
	guild       Guild
	roleID      string
	includeBots bool
}

func (s memberSource) ListEntities(ctx context.Context) ([]batch.Entity, error) {
	members, err := s.guild.Members(ctx)
	if err != nil {
		return nil, err
	}

	entities := make([]batch.Entity, 0, len(members))
	for _, m := range members {
		if m.User.Bot && !s.includeBots {
			continue
		}
		entities = append(entities, batch.Entity{
			ID:        m.User.ID,
			Name:      m.DisplayName(),
			HasMarker: m.HasRole(s.roleID),
		})
	}
	return entities, nil
}

// roleChecker re-reads a member to see whether the role was granted after
// the snapshot.
type roleChecker struct {
	guild  Guild
	roleID string
}

func (c roleChecker) HasMarker(ctx context.Context, e batch.Entity) (bool, error) {
	m, err := c.guild.Member(ctx, e.ID)
	if err != nil {
		return false, err
	}
	return m.HasRole(c.roleID), nil
}

// kicker removes members from the guild.
type kicker struct {
	guild Guild
}

func (k kicker) RemoveEntity(ctx context.Context, e batch.Entity, reason string) error {
	return k.guild.KickMember(ctx, e.ID, reason)
}

const noticeContent = "Notice from the server:"

// dmNotifier sends the removal notice as a DM embed.
type dmNotifier struct {
	guild Guild
	title string
}

func (n dmNotifier) Notify(ctx context.Context, e batch.Entity, message string) error {
	return n.guild.SendDirectMessage(ctx, e.ID, discord.Message{
		Content: noticeContent,
		Embeds:  []discord.Embed{{
			Title:       n.title,
			Description: message,
			Color:       discord.ColorBrandRed,
		}},
	})
}

// dryRunRemover logs the removal it would have made.
type dryRunRemover struct {
	logger zerolog.Logger
}

func (r dryRunRemover) RemoveEntity(_ context.Context, e batch.Entity, reason string) error {
	r.logger.Info().
		Str("entity_id", e.ID).
		Str("entity_name", e.Name).
		Str("reason", reason).
		Msg("dry run: would remove member")
	return nil
}

// countMissingRole counts entities without the marker role.
func countMissingRole(entities []batch.Entity) int {
	n := 0
	for _, e := range entities {
		if !e.HasMarker {
			n++
		}
	}
	return n
}

func describeRole(r discord.Role) string {
	return fmt.Sprintf("%s (%s)", r.Name, r.ID)
}
