package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/jonboulle/clockwork"
)

// ComponentRouterConfig configures a ComponentRouter.
type ComponentRouterConfig struct {
	Responder Responder
	// Navigation receives events with the reserved pagination kind.
	Navigation  NavigationHandler
	Logger      *logger.Logger
	Clock       clockwork.Clock
	AckDeadline time.Duration
}

// ComponentRouter routes message component interactions by the kind prefix
// of their custom ID.
type ComponentRouter struct {
	responder   Responder
	navigation  NavigationHandler
	log         *logger.Logger
	clock       clockwork.Clock
	ackDeadline time.Duration

	mu       sync.RWMutex
	handlers map[string]ComponentHandler
}

// NewComponentRouter creates a router with no component kinds.
func NewComponentRouter(cfg ComponentRouterConfig) *ComponentRouter {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewWithWriter("error", discardWriter{})
	}
	return &ComponentRouter{
		responder:   cfg.Responder,
		navigation:  cfg.Navigation,
		log:         cfg.Logger.WithModule("component_router"),
		clock:       cfg.Clock,
		ackDeadline: cfg.AckDeadline,
		handlers:    make(map[string]ComponentHandler),
	}
}

// Register routes custom IDs of the given kind to h.
// The pagination kind is reserved.
func (r *ComponentRouter) Register(kind string, h ComponentHandler) error {
	if h == nil {
		return fmt.Errorf("component kind %q has no handler", kind)
	}
	if kind == "" {
		return apperrors.NewValidationError("kind", "must not be empty")
	}
	if kind == PaginationKind {
		return fmt.Errorf("component kind %q is reserved", kind)
	}
	if _, err := NewCustomID(kind); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("component kind %q already registered", kind)
	}
	r.handlers[kind] = h
	return nil
}

// Kinds returns the number of registered component kinds.
func (r *ComponentRouter) Kinds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch routes a message component interaction.
func (r *ComponentRouter) Dispatch(ctx context.Context, i *discordgo.Interaction) error {
	start := r.clock.Now()
	ctx = WithInteraction(ctx, i)

	raw := i.MessageComponentData().CustomID
	log := r.log.WithField("custom_id", raw)

	id, err := ParseCustomID(raw)
	if err != nil {
		return r.unroutable(ctx, NewComponentEvent(r.responder, i, CustomID{}), log, err)
	}
	ev := NewComponentEvent(r.responder, i, id)
	log = log.WithField("kind", id.Kind)

	var handler ComponentHandler
	if id.Kind == PaginationKind {
		if r.navigation != nil {
			handler = r.navigation.HandleNavigation
		}
	} else {
		r.mu.RLock()
		handler = r.handlers[id.Kind]
		r.mu.RUnlock()
	}
	if handler == nil {
		return r.unroutable(ctx, ev, log, fmt.Errorf("no owner for kind %q", id.Kind))
	}

	stop := armAckDeadline(r.clock, start, r.ackDeadline, func() {
		if ev.Acknowledged() || ctx.Err() != nil {
			return
		}
		log.DebugContext(ctx, "Ack deadline reached, deferring update")
		if err := ev.Ack(ctx); err != nil {
			log.WithError(err).WarnContext(ctx, "Safety-net ack failed")
		}
	})
	defer stop()

	err = recoverComponent(handler)(ctx, ev)
	if err != nil && expectedFailure(err) {
		// The handler already told the user; a stale or foreign click only
		// needs its acknowledgement.
		log.WithError(err).DebugContext(ctx, "Component rejected")
		if !ev.Acknowledged() {
			if aerr := ev.Ack(ctx); aerr != nil {
				log.WithError(aerr).WarnContext(ctx, "Failed to acknowledge component")
			}
		}
		return err
	}
	if err != nil {
		reportFailure(ctx, log, err)
		if ferr := ev.fail(ctx, failureMessage(err)); ferr != nil {
			log.WithError(ferr).WarnContext(ctx, "Failed to notify user")
		}
		return err
	}
	if !ev.Acknowledged() {
		if err := ev.Ack(ctx); err != nil {
			log.WithError(err).WarnContext(ctx, "Failed to acknowledge component")
		}
	}
	return nil
}

// unroutable acknowledges a click nobody owns so the client stops spinning.
func (r *ComponentRouter) unroutable(ctx context.Context, ev *ComponentEvent, log *logger.Logger, cause error) error {
	log.WithError(cause).DebugContext(ctx, "Unroutable component")
	if err := ev.Ack(ctx); err != nil {
		log.WithError(err).WarnContext(ctx, "Failed to acknowledge unroutable component")
	}
	return fmt.Errorf("%w: %w", apperrors.ErrUnroutableComponent, cause)
}

// expectedFailure reports whether err is routine traffic rather than a fault.
func expectedFailure(err error) bool {
	return errors.Is(err, apperrors.ErrUnroutableComponent) ||
		errors.Is(err, apperrors.ErrForbidden) ||
		errors.Is(err, apperrors.ErrPermissionDenied)
}
