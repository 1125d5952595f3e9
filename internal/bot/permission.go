package bot

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker decides whether a member may run admin commands.
type PermissionChecker interface {
	IsAdmin(ctx context.Context, guildID string, member *discordgo.Member) (bool, error)
}

// AdminRoleStore returns the admin role configured for a guild,
// or "" when none is configured.
type AdminRoleStore interface {
	AdminRole(ctx context.Context, guildID string) (string, error)
}

// GuildAdminChecker grants admin rights to members holding the Administrator
// permission or the guild's configured admin role.
type GuildAdminChecker struct {
	store   AdminRoleStore
	timeout time.Duration
}

// NewGuildAdminChecker creates a checker. The store lookup is bounded by timeout.
func NewGuildAdminChecker(store AdminRoleStore, timeout time.Duration) *GuildAdminChecker {
	return &GuildAdminChecker{store: store, timeout: timeout}
}

// IsAdmin reports whether member is an admin of guildID.
// Lookup failures deny access and are returned for logging.
func (c *GuildAdminChecker) IsAdmin(ctx context.Context, guildID string, member *discordgo.Member) (bool, error) {
	if guildID == "" || member == nil {
		return false, nil // DMs have no admins
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	if c.store == nil {
		return false, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	roleID, err := c.store.AdminRole(ctx, guildID)
	if err != nil {
		return false, fmt.Errorf("lookup admin role: %w", err)
	}
	return roleID != "" && slices.Contains(member.Roles, roleID), nil
}
