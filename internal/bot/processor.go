package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/config"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/garyellow/guildbot-go/internal/ratelimit"
	"github.com/garyellow/guildbot-go/internal/sentry"
)

// Processor is the single entry point for incoming interactions.
// It applies the per-user rate limit, bounds handler time and hands the
// interaction to the matching router.
type Processor struct {
	commands    *CommandRouter
	components  *ComponentRouter
	responder   Responder
	userLimiter *ratelimit.KeyedLimiter
	logger      *logger.Logger
	metrics     *metrics.Metrics

	handlerTimeout time.Duration
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Commands    *CommandRouter
	Components  *ComponentRouter
	Responder   Responder
	UserLimiter *ratelimit.KeyedLimiter // optional
	Logger      *logger.Logger
	Metrics     *metrics.Metrics // optional
	BotConfig   *config.BotConfig
}

// NewProcessor creates a new interaction processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	timeout := config.HandlerProcessing
	if cfg.BotConfig != nil && cfg.BotConfig.HandlerTimeout > 0 {
		timeout = cfg.BotConfig.HandlerTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", discardWriter{})
	}
	return &Processor{
		commands:       cfg.Commands,
		components:     cfg.Components,
		responder:      cfg.Responder,
		userLimiter:    cfg.UserLimiter,
		logger:         log.WithModule("processor"),
		metrics:        cfg.Metrics,
		handlerTimeout: timeout,
	}
}

// Process handles one interaction end to end. Errors are already reported to
// the user and logged; the return value is for callers that count outcomes.
func (p *Processor) Process(ctx context.Context, i *discordgo.Interaction) (err error) {
	start := time.Now()
	kind := InteractionKind(i)

	ctx = WithInteraction(ctx, i)
	log := p.logger.WithField("kind", kind)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).
				WithField("stack", string(debug.Stack())).
				ErrorContext(ctx, "Panic while processing interaction")
			sentry.CapturePanic(ctx, r)
			err = &PanicError{Value: r}
		}
		if p.metrics != nil {
			p.metrics.RecordInteraction(kind, outcomeStatus(err), time.Since(start).Seconds())
		}
	}()

	if p.userLimiter != nil && (i.Type == discordgo.InteractionApplicationCommand || i.Type == discordgo.InteractionMessageComponent) {
		if !p.userLimiter.Allow(UserID(i)) {
			log.DebugContext(ctx, "User rate limited")
			ack := EphemeralText(MsgSlowDown).response(discordgo.InteractionResponseChannelMessageWithSource)
			if rerr := p.responder.Acknowledge(ctx, i, ack); rerr != nil {
				log.WithError(rerr).WarnContext(ctx, "Failed to send rate limit notice")
			}
			return apperrors.ErrRateLimitExceeded
		}
	}

	processCtx, cancel := context.WithTimeout(ctx, p.handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return p.commands.Dispatch(processCtx, i)
	case discordgo.InteractionMessageComponent:
		return p.components.Dispatch(processCtx, i)
	default:
		log.DebugContext(ctx, "Ignoring unsupported interaction type")
		return nil
	}
}

// outcomeStatus maps a processing result to the interactions_total status label.
func outcomeStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, apperrors.ErrUnknownCommand),
		errors.Is(err, apperrors.ErrPermissionDenied),
		errors.Is(err, apperrors.ErrUnroutableComponent),
		errors.Is(err, apperrors.ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}
