package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/config"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/sentry"
	"github.com/jonboulle/clockwork"
)

// User-facing messages shared by the routers.
const (
	MsgGenericFailure   = "❌ Something went wrong while handling that. Please try again later."
	MsgUnknownCommand   = "❓ This command is not available anymore."
	MsgPermissionDenied = "🔒 You need to be a server administrator to use this."
	MsgBusy             = "⏳ The service is busy right now. Please try again in a minute."
	MsgSlowDown         = "🐢 You're going a bit fast. Please wait a moment and try again."
	MsgDone             = "✅ Done."
)

// CommandRouterConfig configures a CommandRouter.
type CommandRouterConfig struct {
	Responder   Responder
	Permissions PermissionChecker
	Logger      *logger.Logger
	// Clock drives the acknowledgement safety net. Defaults to the real clock.
	Clock clockwork.Clock
	// AckDeadline is how long a handler may run before the router defers on
	// its behalf. Zero disables the safety net.
	AckDeadline time.Duration
}

// CommandRouter maps slash command names to descriptors and runs the matched
// handler under the acknowledgement and permission rules of the descriptor.
type CommandRouter struct {
	responder   Responder
	permissions PermissionChecker
	log         *logger.Logger
	clock       clockwork.Clock
	ackDeadline time.Duration

	mu          sync.RWMutex
	commands    map[string]*CommandDescriptor
	middlewares []Middleware
}

// NewCommandRouter creates a router with no commands.
func NewCommandRouter(cfg CommandRouterConfig) *CommandRouter {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewWithWriter("error", discardWriter{})
	}
	if cfg.AckDeadline < 0 {
		cfg.AckDeadline = config.AckDeadline
	}
	return &CommandRouter{
		responder:   cfg.Responder,
		permissions: cfg.Permissions,
		log:         cfg.Logger.WithModule("command_router"),
		clock:       cfg.Clock,
		ackDeadline: cfg.AckDeadline,
		commands:    make(map[string]*CommandDescriptor),
	}
}

// Register adds a command. Names are unique across the router.
func (r *CommandRouter) Register(d *CommandDescriptor) error {
	if d == nil {
		return errors.New("nil command descriptor")
	}
	if err := d.validate(); err != nil {
		return err
	}
	if d.hasAdminRoute() && r.permissions == nil {
		return fmt.Errorf("command %q requires admin but router has no permission checker", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[d.Name]; exists {
		return fmt.Errorf("command %q already registered", d.Name)
	}
	r.commands[d.Name] = d
	return nil
}

// unregister removes a command. Only the registry uses it, to undo a partly
// registered module.
func (r *CommandRouter) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.commands, name)
}

// Use appends middlewares applied to every handler. The first one is outermost.
func (r *CommandRouter) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw...)
}

// Commands returns the registered descriptors sorted by name.
func (r *CommandRouter) Commands() []*CommandDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CommandDescriptor, 0, len(r.commands))
	for _, d := range r.commands {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *CommandDescriptor) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Definitions returns the application command definitions for syncing.
func (r *CommandRouter) Definitions() []*discordgo.ApplicationCommand {
	cmds := r.Commands()
	defs := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, d := range cmds {
		defs = append(defs, d.Definition())
	}
	return defs
}

// Dispatch routes an application command interaction.
//
// The returned error is informational: the user has already been told about
// any failure by the time Dispatch returns.
func (r *CommandRouter) Dispatch(ctx context.Context, i *discordgo.Interaction) error {
	start := r.clock.Now()
	ctx = WithInteraction(ctx, i)

	data := i.ApplicationCommandData()
	sub, opts := commandPath(data)
	inv := newInvocation(r.responder, i, data.Name, sub, opts)
	log := r.log.WithField("command", inv.Path())

	r.mu.RLock()
	d := r.commands[data.Name]
	middlewares := r.middlewares
	r.mu.RUnlock()

	var rt route
	found := false
	if d != nil {
		rt, found = d.resolve(sub)
	}
	if !found {
		log.InfoContext(ctx, "Unknown command")
		r.notify(ctx, &inv.exchange, MsgUnknownCommand, log)
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownCommand, inv.Path())
	}

	inv.ephemeral = rt.ephemeral

	if rt.admin {
		if err := r.authorize(ctx, inv, log); err != nil {
			r.notify(ctx, &inv.exchange, MsgPermissionDenied, log)
			return err
		}
	}

	if rt.deferred {
		if err := inv.Defer(ctx, rt.ephemeral); err != nil {
			log.WithError(err).WarnContext(ctx, "Failed to defer")
			return fmt.Errorf("defer %s: %w", inv.Path(), err)
		}
	} else {
		stop := armAckDeadline(r.clock, start, r.ackDeadline, func() {
			if inv.Acknowledged() || ctx.Err() != nil {
				return
			}
			log.DebugContext(ctx, "Ack deadline reached, deferring")
			if err := inv.Defer(ctx, rt.ephemeral); err != nil {
				log.WithError(err).WarnContext(ctx, "Safety-net defer failed")
			}
		})
		defer stop()
	}

	err := recoverCommand(chain(rt.handler, middlewares...))(ctx, inv)
	if err != nil {
		reportFailure(ctx, log, err)
		r.notify(ctx, &inv.exchange, failureMessage(err), log)
		return err
	}

	if !inv.Acknowledged() {
		log.WarnContext(ctx, "Handler returned without responding")
		r.notify(ctx, &inv.exchange, MsgDone, log)
	} else if inv.pending() {
		// The safety net or a Deferred descriptor left the user looking at
		// "thinking..." and the handler never edited it.
		log.WarnContext(ctx, "Handler left a deferred response unresolved")
		r.notify(ctx, &inv.exchange, MsgDone, log)
	}
	return nil
}

// authorize checks admin rights before anything is sent to Discord.
func (r *CommandRouter) authorize(ctx context.Context, inv *Invocation, log *logger.Logger) error {
	admin, err := r.permissions.IsAdmin(ctx, inv.GuildID, inv.Member)
	if err != nil {
		log.WithError(err).WarnContext(ctx, "Permission lookup failed, denying")
		return fmt.Errorf("%w: %s: %w", apperrors.ErrPermissionDenied, inv.Path(), err)
	}
	if !admin {
		log.DebugContext(ctx, "Permission denied")
		return fmt.Errorf("%w: %s", apperrors.ErrPermissionDenied, inv.Path())
	}
	return nil
}

func (r *CommandRouter) notify(ctx context.Context, ex *exchange, msg string, log *logger.Logger) {
	if err := ex.fail(ctx, msg); err != nil {
		log.WithError(err).WarnContext(ctx, "Failed to notify user")
	}
}

// reportFailure logs err at a level matching its class. Panics and errors an
// operator should look at also go to Sentry.
func reportFailure(ctx context.Context, log *logger.Logger, err error) {
	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		log.WithField("panic", fmt.Sprint(pe.Value)).
			WithField("stack", pe.Stack).
			ErrorContext(ctx, "Handler panicked")
		sentry.CapturePanic(ctx, pe.Value)
	case apperrors.NeedsAttention(err):
		log.WithError(err).ErrorContext(ctx, "Handler failed")
		sentry.CaptureExceptionWithContext(ctx, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.WithError(err).WarnContext(ctx, "Handler timed out")
	default:
		log.WithError(err).WarnContext(ctx, "Handler returned error")
	}
}

// failureMessage picks the text shown to the user for err.
func failureMessage(err error) string {
	fallback := MsgGenericFailure
	if errors.Is(err, apperrors.ErrRateLimitExhausted) {
		fallback = MsgBusy
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return MsgGenericFailure
	}
	return apperrors.GetUserMessage(err, fallback)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
