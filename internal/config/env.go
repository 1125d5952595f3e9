// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core (Required)
	EnvDiscordBotToken = "DISCORD_BOT_TOKEN"
	EnvDiscordAppID    = "DISCORD_APP_ID"

	// Command sync
	EnvCommandGuildID = "DISCORD_COMMAND_GUILD_ID"

	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir = "DATA_DIR"

	// Interaction handling
	EnvAckDeadline     = "ACK_DEADLINE"
	EnvUserRateBurst   = "USER_RATE_BURST"
	EnvUserRateRefill  = "USER_RATE_REFILL"
	EnvDiscordAPIRPS   = "DISCORD_API_RPS"
	EnvPaginationIdle  = "PAGINATION_IDLE_TIMEOUT"
	EnvPaginationSweep = "PAGINATION_SWEEP_INTERVAL"

	// AniList
	EnvAniListEndpoint          = "ANILIST_ENDPOINT"
	EnvAniListRequestsPerWindow = "ANILIST_REQUESTS_PER_WINDOW"
	EnvAniListWindow            = "ANILIST_WINDOW"
	EnvAniListMaxInFlight       = "ANILIST_MAX_IN_FLIGHT"
	EnvAniListMaxRetries        = "ANILIST_MAX_RETRIES"
	EnvAniListDefaultBackoff    = "ANILIST_DEFAULT_BACKOFF"

	// Sentry Feature
	EnvSentryToken       = "SENTRY_TOKEN"
	EnvSentryHost        = "SENTRY_HOST"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"

	// Better Stack Feature
	EnvBetterStackToken    = "BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsUsername = "METRICS_USERNAME"
	EnvMetricsPassword = "METRICS_PASSWORD"
)
