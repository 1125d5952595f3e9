// Package gateway connects the bot to Discord. It receives interactions over
// the websocket session, hands each one to the processor on its own
// goroutine and keeps the registered slash commands in sync.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/config"
	"github.com/garyellow/guildbot-go/internal/ctxutil"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Processor handles one interaction end to end.
type Processor interface {
	Process(ctx context.Context, i *discordgo.Interaction) error
}

// CommandAPI is the subset of *discordgo.Session used for command sync.
type CommandAPI interface {
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Gateway owns the websocket session and the in-flight interaction goroutines.
type Gateway struct {
	session   *discordgo.Session
	commands  CommandAPI
	processor Processor
	logger    *logger.Logger

	appID        string
	scopes       []string
	eventTimeout time.Duration

	ready atomic.Bool

	mu       sync.Mutex // guards closing and wg.Add
	closing  bool
	wg       sync.WaitGroup
	handlers []func()
}

// Config holds configuration for creating a Gateway.
type Config struct {
	Session   *discordgo.Session
	AppID     string
	Processor Processor
	// Scopes lists the guilds commands are synced to; "" is the global scope.
	Scopes []string
	// EventTimeout bounds the processing of one interaction.
	EventTimeout time.Duration
	Logger       *logger.Logger
}

// NewSession creates an unopened discordgo session subscribed to guild events.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("gateway: bot token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("gateway: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	s.ShouldReconnectOnError = true
	return s, nil
}

// New creates a Gateway and registers its event callbacks on the session.
func New(cfg Config) (*Gateway, error) {
	if cfg.Session == nil {
		return nil, errors.New("gateway: session is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("gateway: processor is required")
	}
	if cfg.AppID == "" {
		return nil, errors.New("gateway: application id is required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{""}
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = config.InteractionTokenLifetime
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}

	g := &Gateway{
		session:      cfg.Session,
		commands:     cfg.Session,
		processor:    cfg.Processor,
		logger:       log.WithModule("gateway"),
		appID:        cfg.AppID,
		scopes:       cfg.Scopes,
		eventTimeout: cfg.EventTimeout,
	}
	g.handlers = append(g.handlers,
		cfg.Session.AddHandler(g.onInteraction),
		cfg.Session.AddHandler(g.onReady),
		cfg.Session.AddHandler(g.onResumed),
		cfg.Session.AddHandler(g.onDisconnect),
	)
	return g, nil
}

// Open connects the websocket and syncs the command definitions.
func (g *Gateway) Open(ctx context.Context, defs []*discordgo.ApplicationCommand) error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("gateway: open session: %w", err)
	}
	if err := g.SyncCommands(ctx, defs); err != nil {
		return err
	}
	return nil
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log := g.logger.WithField("guilds", len(r.Guilds))
	if r.User != nil {
		log = log.WithField("user", r.User.Username)
	}
	g.ready.Store(true)
	log.Info("Gateway ready")
}

func (g *Gateway) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	g.ready.Store(true)
	g.logger.Info("Gateway resumed")
}

func (g *Gateway) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	g.ready.Store(false)
	g.logger.Warn("Gateway disconnected")
}

// Ready reports whether the websocket session is connected and identified.
func (g *Gateway) Ready() bool {
	return g.ready.Load()
}

func (g *Gateway) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic == nil || ic.Interaction == nil {
		return
	}
	g.Dispatch(ic.Interaction)
}

// Dispatch processes i asynchronously. Returns false when the gateway is
// shutting down and the interaction was dropped.
func (g *Gateway) Dispatch(i *discordgo.Interaction) bool {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		g.logger.WithField("interaction_id", i.ID).Debug("Gateway closing; interaction dropped")
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	requestID := uuid.NewString()
	go func() {
		defer g.wg.Done()
		log := g.logger.WithRequestID(requestID)
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in interaction processing")
			}
		}()

		ctx := ctxutil.WithRequestID(context.Background(), requestID)
		ctx, cancel := context.WithTimeout(ctx, g.eventTimeout)
		defer cancel()

		start := time.Now()
		err := g.processor.Process(ctx, i)
		log = log.WithField("interaction_type", i.Type.String()).
			WithField("duration_ms", time.Since(start).Milliseconds())
		if err != nil {
			log.WithError(err).Debug("Interaction processed with error")
			return
		}
		log.Debug("Interaction processed")
	}()
	return true
}

// SyncCommands overwrites the registered commands in every configured scope.
func (g *Gateway) SyncCommands(ctx context.Context, defs []*discordgo.ApplicationCommand) error {
	return SyncCommands(ctx, g.commands, g.appID, g.scopes, defs, g.logger)
}

// SyncCommands overwrites the commands of appID in each scope concurrently.
// An empty scope is the global one. It needs no open websocket.
func SyncCommands(ctx context.Context, api CommandAPI, appID string, scopes []string, defs []*discordgo.ApplicationCommand, log *logger.Logger) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, scope := range scopes {
		eg.Go(func() error {
			created, err := api.ApplicationCommandBulkOverwrite(appID, scope, defs, discordgo.WithContext(egCtx))
			if err != nil {
				return fmt.Errorf("gateway: sync commands (%s): %w", scopeName(scope), err)
			}
			log.WithField("scope", scopeName(scope)).
				WithField("commands", len(created)).
				Info("Commands synced")
			return nil
		})
	}
	return eg.Wait()
}

func scopeName(guildID string) string {
	if guildID == "" {
		return "global"
	}
	return "guild " + guildID
}

// Shutdown stops accepting interactions, closes the session and waits for
// in-flight processing. It returns ctx.Err() if ctx is done first.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	already := g.closing
	g.closing = true
	g.mu.Unlock()
	g.ready.Store(false)

	if !already {
		for _, remove := range g.handlers {
			remove()
		}
		if err := g.session.Close(); err != nil {
			g.logger.WithError(err).Warn("Failed to close gateway session")
		}
	}

	c := make(chan struct{})
	go func() {
		defer close(c)
		g.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
