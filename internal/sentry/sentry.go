// Package sentry provides Sentry SDK initialization for Better Stack error tracking integration.
// It wraps the Sentry Go SDK to simplify configuration and attaches interaction
// context (guild, user, interaction) to every captured event.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyellow/guildbot-go/internal/ctxutil"
	"github.com/getsentry/sentry-go"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the Better Stack Errors ingesting host (e.g., "errors.betterstack.com").
	Host string

	// Environment identifies the deployment environment (e.g., "production", "staging").
	Environment string

	// Release identifies the application release version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0 = 100%).
	SampleRate float64

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK with Better Stack configuration.
// If Token is empty, Sentry is disabled and nil is returned.
// The DSN is constructed as: https://$TOKEN@$HOST/1
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil // Sentry disabled
	}

	if cfg.Host == "" {
		return errors.New("sentry host is required when token is provided")
	}

	// The project ID (/1) is required by Sentry SDK but ignored by Better Stack.
	dsn := fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host)

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureExceptionWithContext captures err on the context's hub, tagged with
// the guild, user and interaction carried by ctx.
func CaptureExceptionWithContext(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(ContextTags(ctx))
		hub.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value with interaction context.
func CapturePanic(ctx context.Context, recovered any) {
	CaptureExceptionWithContext(ctx, fmt.Errorf("panic: %v", recovered))
}

// ContextTags extracts the interaction identifiers stored in ctx.
func ContextTags(ctx context.Context) map[string]string {
	tags := make(map[string]string, 4)
	if v := ctxutil.GetGuildID(ctx); v != "" {
		tags["guild_id"] = v
	}
	if v := ctxutil.GetUserID(ctx); v != "" {
		tags["user_id"] = v
	}
	if v := ctxutil.GetInteractionID(ctx); v != "" {
		tags["interaction_id"] = v
	}
	if v, ok := ctxutil.GetRequestID(ctx); ok {
		tags["request_id"] = v
	}
	return tags
}
