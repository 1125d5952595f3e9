package pagination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/config"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// User-facing notices sent by the registry.
const (
	MsgExpired   = "⌛ These buttons have expired. Run the command again to get a fresh list."
	MsgForbidden = "🔒 Only the person who ran this command can use these buttons."
)

// Config configures a Registry.
type Config struct {
	// IdleTimeout is how long a session may go without navigation before a
	// sweep expires it.
	IdleTimeout time.Duration
	// SweepInterval is the period of Run.
	SweepInterval time.Duration
	Clock         clockwork.Clock
	Logger        *logger.Logger
	Metrics       *metrics.Metrics // optional
}

// Registry owns every live session.
type Registry struct {
	idleTimeout   time.Duration
	sweepInterval time.Duration
	clock         clockwork.Clock
	log           *logger.Logger
	metrics       *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = config.PaginationIdle
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = config.PaginationSweep
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewWithWriter("error", io.Discard)
	}
	return &Registry{
		idleTimeout:   cfg.IdleTimeout,
		sweepInterval: cfg.SweepInterval,
		clock:         cfg.Clock,
		log:           cfg.Logger.WithModule("pagination"),
		metrics:       cfg.Metrics,
		sessions:      make(map[string]*Session),
	}
}

// Create builds a session that is not yet visible. Pass it to Register.
func (r *Registry) Create(opts Options) (*Session, error) {
	return newSession(opts, r.clock)
}

// Register shows page 0 of s and stores it under its key. A session already
// stored under the same key is superseded and expires.
func (r *Registry) Register(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("pagination: nil session")
	}
	if err := s.open(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.sessions[s.key]
	r.sessions[s.key] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.recordCount(count)
	r.recordEvent("created")
	if prev != nil && prev != s {
		// The new session already replaced the reply; nothing to strip.
		if _, err := prev.expire(ctx, false); err != nil {
			r.log.WithError(err).WarnContext(ctx, "Failed to expire superseded session")
		}
		r.recordEvent("superseded")
	}
	return nil
}

// Open is Create followed by Register.
func (r *Registry) Open(ctx context.Context, opts Options) (*Session, error) {
	s, err := r.Create(opts)
	if err != nil {
		return nil, err
	}
	if err := r.Register(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the live session stored under key, or nil.
func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Dispose expires the session stored under key and removes it.
func (r *Registry) Dispose(ctx context.Context, key string) bool {
	s := r.remove(key)
	if s == nil {
		return false
	}
	if _, err := s.expire(ctx, true); err != nil {
		r.log.WithError(err).WarnContext(ctx, "Failed to strip navigation on dispose")
	}
	r.recordEvent("disposed")
	return true
}

func (r *Registry) remove(key string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.sessions, key)
	count := len(r.sessions)
	r.mu.Unlock()

	r.recordCount(count)
	return s
}

// HandleNavigation handles a click on a navigation button.
// It satisfies bot.NavigationHandler.
func (r *Registry) HandleNavigation(ctx context.Context, ev *bot.ComponentEvent) error {
	if len(ev.ID.Segments) != 2 {
		return fmt.Errorf("%w: malformed navigation id %q", apperrors.ErrUnroutableComponent, ev.ID.String())
	}
	key, action := ev.ID.Segment(0), ev.ID.Segment(1)

	s := r.Get(key)
	if s == nil {
		r.recordEvent("not_found")
		r.notify(ctx, ev, MsgExpired)
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, key)
	}

	var delta int
	switch action {
	case ActionFirst:
		delta = -s.Len()
	case ActionPrev:
		delta = -1
	case ActionNext:
		delta = 1
	case ActionLast:
		delta = s.Len()
	case ActionNoop:
		return ev.Ack(ctx)
	default:
		return fmt.Errorf("%w: unknown navigation action %q", apperrors.ErrUnroutableComponent, action)
	}

	err := s.navigate(ctx, delta, ev.UserID, updateEditor{ev: ev})
	switch {
	case err == nil:
		r.recordEvent("navigated")
		return nil
	case errors.Is(err, apperrors.ErrForbidden):
		r.recordEvent("forbidden")
		r.notify(ctx, ev, MsgForbidden)
		return err
	case errors.Is(err, apperrors.ErrSessionNotFound):
		// Expired between lookup and lock.
		r.recordEvent("not_found")
		r.notify(ctx, ev, MsgExpired)
		return err
	default:
		return err
	}
}

// notify answers a click with an ephemeral notice and leaves the page as is.
func (r *Registry) notify(ctx context.Context, ev *bot.ComponentEvent, msg string) {
	if err := ev.Followup(ctx, bot.EphemeralText(msg)); err != nil {
		r.log.WithError(err).DebugContext(ctx, "Failed to send navigation notice")
	}
}

// Sweep expires every session idle for longer than the idle timeout and
// returns how many were expired.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.clock.Now()

	r.mu.Lock()
	var idle []*Session
	for key, s := range r.sessions {
		if s.idleFor(now) > r.idleTimeout {
			idle = append(idle, s)
			delete(r.sessions, key)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if len(idle) == 0 {
		return 0
	}
	r.recordCount(count)
	for _, s := range idle {
		if _, err := s.expire(ctx, true); err != nil {
			r.log.WithError(err).WithField("key", s.key).DebugContext(ctx, "Failed to strip navigation on expiry")
		}
		r.recordEvent("expired")
	}
	r.log.WithField("expired", len(idle)).
		WithField("remaining", count).
		DebugContext(ctx, "Pagination sweep complete")
	return len(idle)
}

// Run sweeps on every SweepInterval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep(ctx)
		}
	}
}

// Close expires every session without touching the replies.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		_, _ = s.expire(ctx, false)
	}
	r.recordCount(0)
}

func (r *Registry) recordCount(n int) {
	if r.metrics != nil {
		r.metrics.SetPaginationSessions(n)
	}
}

func (r *Registry) recordEvent(event string) {
	if r.metrics != nil {
		r.metrics.RecordPaginationEvent(event)
	}
}
