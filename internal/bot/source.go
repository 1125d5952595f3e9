package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/ctxutil"
)

// InteractionUser returns the user who triggered the interaction.
// In guilds the user is nested in Member; in DMs it is set directly.
func InteractionUser(i *discordgo.Interaction) *discordgo.User {
	if i == nil {
		return nil
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// UserID returns the invoking user's ID, or "" if unknown.
func UserID(i *discordgo.Interaction) string {
	if u := InteractionUser(i); u != nil {
		return u.ID
	}
	return ""
}

// IsGuild reports whether the interaction happened inside a guild.
func IsGuild(i *discordgo.Interaction) bool {
	return i != nil && i.GuildID != ""
}

// InteractionKind returns a short label for metrics and logs.
func InteractionKind(i *discordgo.Interaction) string {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return "command"
	case discordgo.InteractionMessageComponent:
		return "component"
	case discordgo.InteractionApplicationCommandAutocomplete:
		return "autocomplete"
	case discordgo.InteractionModalSubmit:
		return "modal"
	case discordgo.InteractionPing:
		return "ping"
	default:
		return "unknown"
	}
}

// WithInteraction stores the interaction identifiers in ctx so that log
// records and error reports carry them.
func WithInteraction(ctx context.Context, i *discordgo.Interaction) context.Context {
	if i == nil {
		return ctx
	}
	if i.ID != "" && ctxutil.GetInteractionID(ctx) != i.ID {
		ctx = ctxutil.WithInteractionID(ctx, i.ID)
	}
	if i.GuildID != "" && ctxutil.GetGuildID(ctx) != i.GuildID {
		ctx = ctxutil.WithGuildID(ctx, i.GuildID)
	}
	if id := UserID(i); id != "" && ctxutil.GetUserID(ctx) != id {
		ctx = ctxutil.WithUserID(ctx, id)
	}
	return ctx
}
