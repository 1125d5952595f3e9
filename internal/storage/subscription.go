package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/garyellow/guildbot-go/internal/errors"
)

// CollectionSubscriptions holds anime subscriptions per guild member.
const CollectionSubscriptions = "anime_subscriptions"

// Subscription is a member's interest in an anime.
type Subscription struct {
	AnimeID   int       `json:"anime_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func subscriptionKey(guildID, userID string, animeID int) Key {
	return Key{
		Collection: CollectionSubscriptions,
		GuildID:    guildID,
		UserID:     userID,
		ID:         strconv.Itoa(animeID),
	}
}

// AddSubscription subscribes a member. Reports false when the member was
// already subscribed; the stored title is refreshed either way and the
// original subscription time is kept.
func (db *DB) AddSubscription(ctx context.Context, guildID, userID string, sub *Subscription) (bool, error) {
	if userID == "" {
		return false, apperrors.NewValidationError("user_id", "must not be empty")
	}
	if sub == nil || sub.AnimeID <= 0 {
		return false, apperrors.NewValidationError("anime_id", "must be positive")
	}
	key := subscriptionKey(guildID, userID, sub.AnimeID)

	var existing Subscription
	switch err := db.Get(ctx, key, &existing); {
	case err == nil:
		if !existing.CreatedAt.IsZero() {
			sub.CreatedAt = existing.CreatedAt
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return false, err
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = db.now().UTC().Truncate(time.Second)
	}
	return db.Put(ctx, key, sub)
}

// RemoveSubscription unsubscribes a member. Reports whether a subscription existed.
func (db *DB) RemoveSubscription(ctx context.Context, guildID, userID string, animeID int) (bool, error) {
	return db.Delete(ctx, subscriptionKey(guildID, userID, animeID))
}

// ListSubscriptions returns a member's subscriptions, oldest first.
func (db *DB) ListSubscriptions(ctx context.Context, guildID, userID string) ([]Subscription, error) {
	docs, err := db.List(ctx, Scope{Collection: CollectionSubscriptions, GuildID: guildID, UserID: userID})
	if err != nil {
		return nil, err
	}
	subs := make([]Subscription, 0, len(docs))
	for _, doc := range docs {
		var s Subscription
		if err := doc.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode subscription %s: %w", doc.ID, err)
		}
		subs = append(subs, s)
	}
	return subs, nil
}
