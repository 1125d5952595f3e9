package storage

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/garyellow/guildbot-go/internal/errors"
)

// CollectionGuildConfig holds one GuildConfig per guild.
const CollectionGuildConfig = "guild_config"

// GuildConfig is the per-guild bot configuration.
type GuildConfig struct {
	AdminRoleID string    `json:"admin_role_id,omitempty"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func guildConfigKey(guildID string) Key {
	return Key{Collection: CollectionGuildConfig, GuildID: guildID, ID: "config"}
}

// GetGuildConfig returns the guild's configuration, or an empty one when
// nothing was saved yet.
func (db *DB) GetGuildConfig(ctx context.Context, guildID string) (*GuildConfig, error) {
	if guildID == "" {
		return nil, apperrors.NewValidationError("guild_id", "must not be empty")
	}
	var cfg GuildConfig
	err := db.Get(ctx, guildConfigKey(guildID), &cfg)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &GuildConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveGuildConfig stores the guild's configuration.
func (db *DB) SaveGuildConfig(ctx context.Context, guildID string, cfg *GuildConfig) error {
	if guildID == "" {
		return apperrors.NewValidationError("guild_id", "must not be empty")
	}
	cfg.UpdatedAt = db.now().UTC().Truncate(time.Second)
	_, err := db.Put(ctx, guildConfigKey(guildID), cfg)
	return err
}

// AdminRole returns the configured admin role, or "" when none is set.
func (db *DB) AdminRole(ctx context.Context, guildID string) (string, error) {
	cfg, err := db.GetGuildConfig(ctx, guildID)
	if err != nil {
		return "", err
	}
	return cfg.AdminRoleID, nil
}
