package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/garyellow/guildbot-go/internal/ratelimit"
	"github.com/jonboulle/clockwork"
)

const restService = "discord"

// InteractionAPI is the subset of *discordgo.Session used to answer
// interactions.
type InteractionAPI interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// RESTResponder answers interactions over Discord's REST API. Every call
// first takes a token from a process-wide bucket so bursts of pagination
// edits stay under Discord's global request limit.
type RESTResponder struct {
	api     InteractionAPI
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	log     *logger.Logger
	clock   clockwork.Clock
}

// ResponderConfig holds configuration for creating a RESTResponder.
type ResponderConfig struct {
	API InteractionAPI
	// RequestsPerSecond sizes the global bucket (burst equals one second of traffic).
	RequestsPerSecond float64
	Metrics           *metrics.Metrics
	Logger            *logger.Logger
	Clock             clockwork.Clock
}

// NewRESTResponder creates a responder.
func NewRESTResponder(cfg ResponderConfig) (*RESTResponder, error) {
	if cfg.API == nil {
		return nil, errors.New("gateway: interaction API is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("gateway: requests per second must be positive, got %v", cfg.RequestsPerSecond)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &RESTResponder{
		api:     cfg.API,
		limiter: ratelimit.NewWithClock(cfg.RequestsPerSecond, cfg.RequestsPerSecond, cfg.Clock),
		metrics: cfg.Metrics,
		log:     log.WithModule("rest"),
		clock:   cfg.Clock,
	}, nil
}

// Acknowledge sends the initial interaction response.
func (r *RESTResponder) Acknowledge(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	start := r.clock.Now()
	err := r.api.InteractionRespond(i, resp, discordgo.WithContext(ctx))
	return r.done("acknowledge", start, err)
}

// EditOriginal edits the original response of an acknowledged interaction.
func (r *RESTResponder) EditOriginal(ctx context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	start := r.clock.Now()
	msg, err := r.api.InteractionResponseEdit(i, edit, discordgo.WithContext(ctx))
	return msg, r.done("edit_original", start, err)
}

// SendFollowup sends an additional message for an acknowledged interaction.
func (r *RESTResponder) SendFollowup(ctx context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	start := r.clock.Now()
	msg, err := r.api.FollowupMessageCreate(i, true, params, discordgo.WithContext(ctx))
	return msg, r.done("followup", start, err)
}

func (r *RESTResponder) wait(ctx context.Context) error {
	if r.limiter.Allow() {
		return nil
	}
	start := r.clock.Now()
	if r.metrics != nil {
		r.metrics.RecordRateLimiterDrop("discord_global")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gateway: wait for REST budget: %w", err)
	}
	if r.metrics != nil {
		r.metrics.RecordRateLimiterWait("discord_global", r.clock.Since(start).Seconds())
	}
	return nil
}

func (r *RESTResponder) done(op string, start time.Time, err error) error {
	status := "success"
	if err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordUpstreamRequest(restService, status, r.clock.Since(start).Seconds())
	}
	if err == nil {
		return nil
	}

	wrapped := restError(err)
	r.log.WithError(err).WithField("operation", op).Debug("Discord REST call failed")
	return fmt.Errorf("%s: %w", op, wrapped)
}

// restError maps a discordgo error to an UpstreamError that keeps the
// HTTP status and Discord's JSON error code.
func restError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var re *discordgo.RESTError
	if !errors.As(err, &re) {
		return apperrors.NewUpstreamError(restService, 0, err)
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	if status == http.StatusTooManyRequests {
		return ratelimit.Throttled(ratelimit.ParseRetryAfter(re.Response.Header, time.Now()), err)
	}
	if re.Message != nil && re.Message.Code != 0 {
		err = fmt.Errorf("code %d: %w", re.Message.Code, err)
	}
	return apperrors.NewUpstreamError(restService, status, err)
}
