// Package settings implements the admin-only /settings command.
package settings

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/storage"
)

// ModuleName is the settings module name.
const ModuleName = "settings"

const (
	msgGuildOnly    = "Settings only work inside a server."
	msgRoleSet      = "✅ Members with <@&%s> can now use admin commands."
	msgRoleCleared  = "✅ Admin role cleared. Only members with the Administrator permission can use admin commands."
	msgNoAdminRole  = "Not set (Administrator permission only)"
	msgNeverUpdated = "Never"
)

// Handler handles guild settings.
type Handler struct {
	store  storage.GuildConfigRepository
	logger *logger.Logger
}

// NewHandler creates a new settings handler.
func NewHandler(store storage.GuildConfigRepository, log *logger.Logger) *Handler {
	return &Handler{store: store, logger: log}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// Commands returns the /settings command.
func (h *Handler) Commands() []*bot.CommandDescriptor {
	return []*bot.CommandDescriptor{{
		Name:        "settings",
		Description: "Configure the bot for this server",
		Admin:       true,
		Ephemeral:   true,
		Subcommands: map[string]*bot.Subcommand{
			"adminrole": {
				Description: "Set or clear the role allowed to use admin commands",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to grant admin commands (leave empty to clear)",
				}},
				Handler: h.handleAdminRole,
			},
			"show": {
				Description: "Show the current settings",
				Handler:     h.handleShow,
			},
		},
	}}
}

func (h *Handler) handleAdminRole(ctx context.Context, inv *bot.Invocation) error {
	if inv.GuildID == "" {
		return inv.Reply(ctx, bot.EphemeralText(msgGuildOnly))
	}

	cfg, err := h.store.GetGuildConfig(ctx, inv.GuildID)
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}
	cfg.AdminRoleID = inv.Role("role")
	cfg.UpdatedBy = inv.UserID
	if err := h.store.SaveGuildConfig(ctx, inv.GuildID, cfg); err != nil {
		return fmt.Errorf("save guild config: %w", err)
	}

	h.logger.WithModule(ModuleName).
		WithField("guild_id", inv.GuildID).
		WithField("admin_role_id", cfg.AdminRoleID).
		Info("Admin role updated")

	if cfg.AdminRoleID == "" {
		return inv.Reply(ctx, bot.EphemeralText(msgRoleCleared))
	}
	return inv.Reply(ctx, bot.EphemeralText(fmt.Sprintf(msgRoleSet, cfg.AdminRoleID)))
}

func (h *Handler) handleShow(ctx context.Context, inv *bot.Invocation) error {
	if inv.GuildID == "" {
		return inv.Reply(ctx, bot.EphemeralText(msgGuildOnly))
	}
	cfg, err := h.store.GetGuildConfig(ctx, inv.GuildID)
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}

	role := msgNoAdminRole
	if cfg.AdminRoleID != "" {
		role = fmt.Sprintf("<@&%s>", cfg.AdminRoleID)
	}
	updated := msgNeverUpdated
	if !cfg.UpdatedAt.IsZero() {
		updated = fmt.Sprintf("<t:%d:R>", cfg.UpdatedAt.Unix())
		if cfg.UpdatedBy != "" {
			updated += fmt.Sprintf(" by <@%s>", cfg.UpdatedBy)
		}
	}

	return inv.Reply(ctx, &bot.Reply{
		Ephemeral: true,
		Embeds: []*discordgo.MessageEmbed{{
			Title: "Server settings",
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Admin role", Value: role},
				{Name: "Last updated", Value: updated},
			},
		}},
	})
}
