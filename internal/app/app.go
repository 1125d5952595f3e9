// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/anilist"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/buildinfo"
	"github.com/garyellow/guildbot-go/internal/config"
	"github.com/garyellow/guildbot-go/internal/gateway"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/garyellow/guildbot-go/internal/modules/anime"
	"github.com/garyellow/guildbot-go/internal/modules/help"
	"github.com/garyellow/guildbot-go/internal/modules/settings"
	"github.com/garyellow/guildbot-go/internal/modules/usage"
	"github.com/garyellow/guildbot-go/internal/pagination"
	"github.com/garyellow/guildbot-go/internal/ratelimit"
	"github.com/garyellow/guildbot-go/internal/sentry"
	"github.com/garyellow/guildbot-go/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// readinessProbe reports whether the bot is connected to Discord.
type readinessProbe interface {
	Ready() bool
}

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg         *config.Config
	logger      *logger.Logger
	db          *storage.DB
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
	scheduler   *ratelimit.Scheduler
	pages       *pagination.Registry
	commands    *bot.CommandRouter
	userLimiter *ratelimit.KeyedLimiter
	gateway     *gateway.Gateway
	readiness   readinessProbe
	server      *http.Server

	lastOptimize atomic.Int64  // unix seconds of the last PRAGMA optimize
	wg           sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "guildbot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// ContextHandler pulls guild, user and request ids out of ctx for
	// package-level slog.*Context() calls.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
	}); err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Error tracking enabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	scheduler := ratelimit.NewScheduler(ratelimit.SchedulerConfig{
		Name:              "anilist",
		MaxInFlight:       cfg.AniList.MaxInFlight,
		RequestsPerWindow: cfg.AniList.RequestsPerWindow,
		Window:            cfg.AniList.Window,
		MaxRetries:        cfg.AniList.MaxRetries,
		DefaultBackoff:    cfg.AniList.DefaultBackoff,
		MaxBackoff:        cfg.AniList.MaxBackoff,
		Metrics:           m,
		Logger:            log,
	})

	anilistClient, err := anilist.New(anilist.Options{
		Endpoint:  cfg.AniList.Endpoint,
		Timeout:   cfg.AniList.RequestTimeout,
		Scheduler: scheduler,
		Metrics:   m,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("anilist: %w", err)
	}

	pages := pagination.NewRegistry(pagination.Config{
		IdleTimeout:   cfg.Bot.PaginationIdleTimeout,
		SweepInterval: cfg.Bot.PaginationSweepInterval,
		Logger:        log,
		Metrics:       m,
	})

	session, err := gateway.NewSession(cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	responder, err := gateway.NewRESTResponder(gateway.ResponderConfig{
		API:               session,
		RequestsPerSecond: cfg.Bot.DiscordAPIRPS,
		Metrics:           m,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}

	commands := bot.NewCommandRouter(bot.CommandRouterConfig{
		Responder:   responder,
		Permissions: bot.NewGuildAdminChecker(db, config.PermissionLookup),
		Logger:      log,
		AckDeadline: cfg.Bot.AckDeadline,
	})
	commands.Use(bot.LoggingMiddleware(log), bot.MetricsMiddleware(m))
	components := bot.NewComponentRouter(bot.ComponentRouterConfig{
		Responder:   responder,
		Navigation:  pages,
		Logger:      log,
		AckDeadline: cfg.Bot.AckDeadline,
	})

	userLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "user",
		Burst:         cfg.Bot.UserRateLimitBurst,
		RefillRate:    cfg.Bot.UserRateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	botRegistry := bot.NewRegistry(commands, components)
	if err := registerModules(botRegistry, moduleDeps{
		searcher: anilistClient,
		db:       db,
		pages:    pages,
		logger:   log,
		perPage:  cfg.Bot.ItemsPerPage,
		quota:    userLimiter,
		queue:    scheduler,
	}); err != nil {
		userLimiter.Stop()
		return nil, err
	}

	processor := bot.NewProcessor(bot.ProcessorConfig{
		Commands:    commands,
		Components:  components,
		Responder:   responder,
		UserLimiter: userLimiter,
		Logger:      log,
		Metrics:     m,
		BotConfig:   &cfg.Bot,
	})

	gw, err := gateway.New(gateway.Config{
		Session:   session,
		AppID:     cfg.DiscordAppID,
		Processor: processor,
		Scopes:    cfg.CommandScopes(),
		Logger:    log,
	})
	if err != nil {
		userLimiter.Stop()
		return nil, err
	}

	app := &Application{
		cfg:         cfg,
		logger:      log,
		db:          db,
		metrics:     m,
		registry:    registry,
		scheduler:   scheduler,
		pages:       pages,
		commands:    commands,
		userLimiter: userLimiter,
		gateway:     gw,
		readiness:   gw,
	}

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.WithField("modules", len(botRegistry.Modules())).
		WithField("commands", len(commands.Commands())).
		Info("Initialization complete")
	return app, nil
}

// moduleDeps is what the bot modules need at runtime.
type moduleDeps struct {
	searcher anime.Searcher
	db       *storage.DB
	pages    *pagination.Registry
	logger   *logger.Logger
	perPage  int
	quota    usage.QuotaReader
	queue    usage.QueueReporter
}

func registerModules(reg *bot.Registry, d moduleDeps) error {
	for _, module := range []bot.Module{
		anime.NewHandler(d.searcher, d.db, d.pages, d.logger, d.perPage),
		settings.NewHandler(d.db, d.logger),
		usage.NewHandler(d.quota, d.queue, d.logger),
		help.NewHandler(reg, d.pages),
	} {
		if err := reg.Register(module); err != nil {
			return fmt.Errorf("module %s: %w", module.Name(), err)
		}
	}
	return nil
}

// denyAll refuses every admin check. Only used to build definitions.
type denyAll struct{}

func (denyAll) IsAdmin(context.Context, string, *discordgo.Member) (bool, error) { return false, nil }

// CommandDefinitions returns the slash commands the bot registers, without
// connecting to Discord or opening the database.
func CommandDefinitions() ([]*discordgo.ApplicationCommand, error) {
	commands := bot.NewCommandRouter(bot.CommandRouterConfig{Permissions: denyAll{}})
	reg := bot.NewRegistry(commands, bot.NewComponentRouter(bot.ComponentRouterConfig{}))
	if err := registerModules(reg, moduleDeps{
		logger:  logger.NewWithWriter("error", io.Discard),
		perPage: config.DefaultBotConfig().ItemsPerPage,
	}); err != nil {
		return nil, err
	}
	return commands.Definitions(), nil
}

// Run opens the gateway, starts the HTTP server and background jobs and
// blocks until SIGINT/SIGTERM.
//
// Shutdown order:
//  1. Cancel context so background jobs stop
//  2. Wait for background jobs
//  3. Stop HTTP server, then the gateway (waits for in-flight interactions)
//  4. Close scheduler, pagination sessions, database and logger
//
// The gateway goes down before the scheduler so in-flight handlers can still
// reach AniList, and before the database so no handler sees a closed DB.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // Ensure context is always canceled

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	if err := a.gateway.Open(ctx, a.commands.Definitions()); err != nil {
		cancel()
		a.wg.Wait()
		_ = a.shutdown()
		return fmt.Errorf("gateway: %w", err)
	}

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown releases resources. Call it after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for in-flight interactions...")
	if err := a.gateway.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Gateway shutdown timeout")
	}

	a.logger.Info("Closing resources...")

	if err := a.scheduler.Close(shutdownCtx); err != nil {
		a.logger.WithError(err).WithField("component", "scheduler").Error("Component close error")
	}

	a.pages.Close(shutdownCtx)

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	a.userLimiter.Stop()

	if sentry.IsEnabled() && !sentry.Flush(2*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}
