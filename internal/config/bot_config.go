package config

import (
	"errors"
	"fmt"
	"time"
)

// Discord API constraints.
const (
	DiscordMaxCustomIDLength    = 100
	DiscordMaxMessageLength     = 2000
	DiscordMaxEmbedsPerMessage  = 10
	DiscordMaxActionRows        = 5
	DiscordMaxButtonsPerRow     = 5
	DiscordMaxSelectOptions     = 25
	DiscordMaxEmbedDescription  = 4096
	DiscordGlobalRequestsPerSec = 50
)

// BotConfig holds interaction handling settings.
type BotConfig struct {
	// AckDeadline is when the router acknowledges for a slow handler.
	AckDeadline time.Duration
	// HandlerTimeout bounds one interaction end to end.
	HandlerTimeout time.Duration

	// Per-user interaction limit (token bucket).
	UserRateLimitBurst        float64
	UserRateLimitRefillPerSec float64

	// DiscordAPIRPS caps outbound REST calls across the process.
	DiscordAPIRPS float64

	PaginationIdleTimeout   time.Duration
	PaginationSweepInterval time.Duration
	// ItemsPerPage is how many result entries a paginated reply shows per page.
	ItemsPerPage int
}

// DefaultBotConfig returns the defaults used when no overrides are set.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		AckDeadline:               AckDeadline,
		HandlerTimeout:            HandlerProcessing,
		UserRateLimitBurst:        10,
		UserRateLimitRefillPerSec: 0.5, // 1 per 2s
		DiscordAPIRPS:             40,  // below the 50 rps global limit
		PaginationIdleTimeout:     PaginationIdle,
		PaginationSweepInterval:   PaginationSweep,
		ItemsPerPage:              5,
	}
}

// Validate checks the bot settings against Discord's limits.
func (c BotConfig) Validate() error {
	var errs []error

	if c.AckDeadline <= 0 || c.AckDeadline >= InteractionAckLimit {
		errs = append(errs, fmt.Errorf("ACK_DEADLINE must be in (0, %v), got %v", InteractionAckLimit, c.AckDeadline))
	}
	if c.HandlerTimeout <= 0 || c.HandlerTimeout > InteractionTokenLifetime {
		errs = append(errs, fmt.Errorf("handler timeout must be in (0, %v], got %v", InteractionTokenLifetime, c.HandlerTimeout))
	}
	if c.UserRateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("USER_RATE_BURST must be positive, got %v", c.UserRateLimitBurst))
	}
	if c.UserRateLimitRefillPerSec <= 0 {
		errs = append(errs, fmt.Errorf("USER_RATE_REFILL must be positive, got %v", c.UserRateLimitRefillPerSec))
	}
	if c.DiscordAPIRPS <= 0 || c.DiscordAPIRPS > DiscordGlobalRequestsPerSec {
		errs = append(errs, fmt.Errorf("DISCORD_API_RPS must be in (0, %d], got %v", DiscordGlobalRequestsPerSec, c.DiscordAPIRPS))
	}
	if c.PaginationIdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PAGINATION_IDLE_TIMEOUT must be positive, got %v", c.PaginationIdleTimeout))
	}
	if c.PaginationSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("PAGINATION_SWEEP_INTERVAL must be positive, got %v", c.PaginationSweepInterval))
	}
	if c.ItemsPerPage < 1 || c.ItemsPerPage > DiscordMaxSelectOptions {
		errs = append(errs, fmt.Errorf("items per page must be 1-%d, got %d", DiscordMaxSelectOptions, c.ItemsPerPage))
	}

	return errors.Join(errs...)
}
