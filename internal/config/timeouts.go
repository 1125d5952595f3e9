// Package config provides centralized timeout constants for the application.
//
// These values are tuned around Discord interaction constraints:
//
//   - Initial response: every interaction must be acknowledged within 3 seconds
//     or the client shows "The application did not respond".
//   - Interaction token: valid for 15 minutes after the interaction was created.
//     Edits to the original reply and followups use it.
//   - Component custom IDs are capped at 100 bytes.
//
// Handlers that may exceed the initial deadline send a deferred acknowledgment
// first and edit the original reply afterwards.
package config

import "time"

// Interaction deadlines
const (
	// InteractionAckLimit is Discord's hard limit for the initial response.
	InteractionAckLimit = 3 * time.Second

	// AckDeadline is when the router acknowledges on the handler's behalf.
	// Leaves headroom for the REST round trip inside InteractionAckLimit.
	AckDeadline = 2500 * time.Millisecond

	// InteractionTokenLifetime is how long edits and followups remain possible.
	InteractionTokenLifetime = 15 * time.Minute

	// HandlerProcessing bounds a single interaction's slow work.
	// Must stay below InteractionTokenLifetime so the final edit still lands.
	HandlerProcessing = 60 * time.Second

	// PermissionLookup bounds the admin role lookup done before acknowledging.
	PermissionLookup = 1 * time.Second
)

// HTTP server timeouts (health and metrics endpoints)
const (
	HTTPRead  = 10 * time.Second
	HTTPWrite = 15 * time.Second
	HTTPIdle  = 120 * time.Second
)

// Outbound requests
const (
	// UpstreamRequest is the timeout for a single HTTP request to an external API.
	UpstreamRequest = 15 * time.Second

	// DiscordREST is the timeout for one REST call to Discord.
	DiscordREST = 10 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 5 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// PaginationIdle is how long a session may go without navigation before expiry.
	PaginationIdle = 10 * time.Minute

	// PaginationSweep is how often the pagination registry looks for idle sessions.
	PaginationSweep = 2 * time.Minute

	// MetricsUpdateInterval is how often gauge metrics are refreshed.
	MetricsUpdateInterval = 30 * time.Second

	// RateLimiterCleanupInterval is how often inactive user rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute

	// DatabaseOptimizeInterval is how often PRAGMA optimize runs.
	DatabaseOptimizeInterval = 6 * time.Hour

	// MaintenanceCheckInterval is how often the maintenance job checks whether
	// a task is due.
	MaintenanceCheckInterval = 10 * time.Minute

	// ReadinessCheck bounds the dependency checks behind /readyz.
	ReadinessCheck = 3 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the default timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
