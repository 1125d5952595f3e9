// Package config provides application configuration management.
// It loads settings from environment variables (optionally from a .env file)
// and provides defaults for the Discord gateway, the AniList scheduler,
// pagination and interaction timeouts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Discord Configuration
	DiscordToken   string
	DiscordAppID   string
	CommandGuildID string // Comma-separated guilds to sync commands to (empty = global)

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir string // Data directory for SQLite database

	// Better Stack (logs and errors)
	BetterStackToken    string
	BetterStackEndpoint string
	SentryToken         string
	SentryHost          string
	SentryEnvironment   string

	AniList AniListConfig
	Bot     BotConfig
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	bot := DefaultBotConfig()
	anilist := DefaultAniListConfig()

	cfg := &Config{
		DiscordToken:   strings.TrimPrefix(getEnv(EnvDiscordBotToken, ""), "Bot "),
		DiscordAppID:   getEnv(EnvDiscordAppID, ""),
		CommandGuildID: getEnv(EnvCommandGuildID, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
		SentryToken:         getEnv(EnvSentryToken, ""),
		SentryHost:          getEnv(EnvSentryHost, ""),
		SentryEnvironment:   getEnv(EnvSentryEnvironment, "production"),

		AniList: AniListConfig{
			Endpoint:          getEnv(EnvAniListEndpoint, anilist.Endpoint),
			RequestsPerWindow: getIntEnv(EnvAniListRequestsPerWindow, anilist.RequestsPerWindow),
			Window:            getDurationEnv(EnvAniListWindow, anilist.Window),
			MaxInFlight:       getIntEnv(EnvAniListMaxInFlight, anilist.MaxInFlight),
			MaxRetries:        getIntEnv(EnvAniListMaxRetries, anilist.MaxRetries),
			DefaultBackoff:    getDurationEnv(EnvAniListDefaultBackoff, anilist.DefaultBackoff),
			MaxBackoff:        anilist.MaxBackoff,
			RequestTimeout:    anilist.RequestTimeout,
		},

		Bot: BotConfig{
			AckDeadline:               getDurationEnv(EnvAckDeadline, bot.AckDeadline),
			HandlerTimeout:            bot.HandlerTimeout,
			UserRateLimitBurst:        getFloatEnv(EnvUserRateBurst, bot.UserRateLimitBurst),
			UserRateLimitRefillPerSec: getFloatEnv(EnvUserRateRefill, bot.UserRateLimitRefillPerSec),
			DiscordAPIRPS:             getFloatEnv(EnvDiscordAPIRPS, bot.DiscordAPIRPS),
			PaginationIdleTimeout:     getDurationEnv(EnvPaginationIdle, bot.PaginationIdleTimeout),
			PaginationSweepInterval:   getDurationEnv(EnvPaginationSweep, bot.PaginationSweepInterval),
			ItemsPerPage:              bot.ItemsPerPage,
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.DiscordToken == "" {
		errs = append(errs, errors.New(EnvDiscordBotToken+" is required"))
	}
	if c.DiscordAppID == "" {
		errs = append(errs, errors.New(EnvDiscordAppID+" is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New(EnvDataDir+" is required"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if (c.SentryToken == "") != (c.SentryHost == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", EnvSentryToken, EnvSentryHost))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}
	if err := c.AniList.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("anilist config: %w", err))
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "guildbot.db")
}

// SyncGlobally reports whether commands are registered for every guild.
func (c *Config) SyncGlobally() bool {
	scopes := c.CommandScopes()
	return len(scopes) == 1 && scopes[0] == ""
}

// CommandScopes returns the guild IDs commands are synced to.
// A single empty ID stands for the global scope.
func (c *Config) CommandScopes() []string {
	var ids []string
	for id := range strings.SplitSeq(c.CommandGuildID, ",") {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{""}
	}
	return ids
}
