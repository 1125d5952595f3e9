// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey        contextKey = "ctxutil.userID"
	guildIDKey       contextKey = "ctxutil.guildID"
	interactionIDKey contextKey = "ctxutil.interactionID"
	requestIDKey     contextKey = "ctxutil.requestID"
)

// WithUserID adds a user ID to the context.
// User ID comes from the interaction's member or user and is used for
// rate limiting and restricted pagination.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the user ID from the context.
// Returns the user ID if found, empty string otherwise.
func GetUserID(ctx context.Context) string {
	return getString(ctx, userIDKey)
}

// MustGetUserID retrieves the user ID from the context.
// Panics if the user ID is not found. Use this in contexts where
// the user ID is guaranteed to exist (e.g., after Processor injected it).
func MustGetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		panic("ctxutil: userID not found")
	}
	return userID
}

// WithGuildID adds a guild ID to the context.
// Empty for interactions coming from direct messages.
func WithGuildID(ctx context.Context, guildID string) context.Context {
	return context.WithValue(ctx, guildIDKey, guildID)
}

// GetGuildID retrieves the guild ID from the context.
func GetGuildID(ctx context.Context) string {
	return getString(ctx, guildIDKey)
}

// WithInteractionID adds the platform interaction ID to the context.
func WithInteractionID(ctx context.Context, interactionID string) context.Context {
	return context.WithValue(ctx, interactionIDKey, interactionID)
}

// GetInteractionID retrieves the interaction ID from the context.
func GetInteractionID(ctx context.Context) string {
	return getString(ctx, interactionIDKey)
}

// WithRequestID adds a request ID to the context for tracing.
// Request ID is generated per gateway event for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// This function creates a fresh context.Background() and copies only tracing values,
// avoiding memory leaks from retaining parent context references (Go issue #64478).
//
// Use for async work that must outlive the gateway callback, such as the
// slow phase of a deferred command.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if userID := GetUserID(ctx); userID != "" {
		newCtx = WithUserID(newCtx, userID)
	}
	if guildID := GetGuildID(ctx); guildID != "" {
		newCtx = WithGuildID(newCtx, guildID)
	}
	if interactionID := GetInteractionID(ctx); interactionID != "" {
		newCtx = WithInteractionID(newCtx, interactionID)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}

	return newCtx
}

func getString(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
