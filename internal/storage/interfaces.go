package storage

import (
	"context"
)

// DocumentStore is the generic key/document access used by modules.
type DocumentStore interface {
	Put(ctx context.Context, key Key, v any) (bool, error)
	Get(ctx context.Context, key Key, dst any) error
	Delete(ctx context.Context, key Key) (bool, error)
	List(ctx context.Context, scope Scope) ([]Document, error)
}

// GuildConfigRepository defines guild settings operations.
type GuildConfigRepository interface {
	GetGuildConfig(ctx context.Context, guildID string) (*GuildConfig, error)
	SaveGuildConfig(ctx context.Context, guildID string, cfg *GuildConfig) error
	// AdminRole returns the configured admin role, or "" when none is set.
	AdminRole(ctx context.Context, guildID string) (string, error)
}

// SubscriptionRepository defines anime subscription operations.
type SubscriptionRepository interface {
	AddSubscription(ctx context.Context, guildID, userID string, sub *Subscription) (bool, error)
	RemoveSubscription(ctx context.Context, guildID, userID string, animeID int) (bool, error)
	ListSubscriptions(ctx context.Context, guildID, userID string) ([]Subscription, error)
}

// Compile-time interface satisfaction checks.
var (
	_ DocumentStore          = (*DB)(nil)
	_ GuildConfigRepository  = (*DB)(nil)
	_ SubscriptionRepository = (*DB)(nil)
)
