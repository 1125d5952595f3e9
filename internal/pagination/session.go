package pagination

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/config"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/jonboulle/clockwork"
)

// State is the lifecycle state of a session.
type State int32

const (
	// StateActive sessions accept navigation.
	StateActive State = iota
	// StateExpired is terminal.
	StateExpired
)

func (s State) String() string {
	if s == StateExpired {
		return "expired"
	}
	return "active"
}

// Editor replaces the content of the reply a session owns.
// *bot.Invocation satisfies it.
type Editor interface {
	Edit(ctx context.Context, r *bot.Reply) error
}

// replier is an Editor that can also send the first response when the
// interaction has not been acknowledged yet. *bot.Invocation satisfies it.
type replier interface {
	Reply(ctx context.Context, r *bot.Reply) error
}

// updateEditor edits through a component interaction, acknowledging it with
// the new content when it has not been acknowledged yet.
type updateEditor struct {
	ev *bot.ComponentEvent
}

func (u updateEditor) Edit(ctx context.Context, r *bot.Reply) error {
	return u.ev.Update(ctx, r)
}

// Options describes a session to create.
type Options struct {
	// Key routes navigation buttons back to the session. Use the ID of the
	// interaction whose reply is paginated.
	Key string
	// ApplicationID owns the reply token.
	ApplicationID string
	Pages         []PageSource
	Renderer      Renderer
	// RestrictTo, when set, is the only user allowed to navigate.
	RestrictTo string
	// Editor edits the reply being paginated.
	Editor Editor
}

// Session is one interactive multi-page reply.
type Session struct {
	key        string
	appID      string
	pages      []PageSource
	renderer   Renderer
	restrictTo string
	clock      clockwork.Clock
	createdAt  time.Time

	// lastActivity is read by the sweeper without taking mu, so that a slow
	// edit in progress does not stall a sweep.
	lastActivity atomic.Int64
	state        atomic.Int32

	// mu serializes open, navigate and expire. It is held across
	// compute, render and edit.
	mu       sync.Mutex
	index    int
	editor   Editor
	editorAt time.Time
	shown    *bot.Reply
}

func newSession(opts Options, clock clockwork.Clock) (*Session, error) {
	if opts.Key == "" {
		return nil, apperrors.NewValidationError("key", "must not be empty")
	}
	if _, err := bot.NewCustomID(bot.PaginationKind, opts.Key, ActionFirst); err != nil {
		return nil, err
	}
	if len(opts.Pages) == 0 {
		return nil, apperrors.NewValidationError("pages", "at least one page is required")
	}
	if opts.Renderer == nil {
		return nil, apperrors.NewValidationError("renderer", "must not be nil")
	}
	if opts.Editor == nil {
		return nil, apperrors.NewValidationError("editor", "must not be nil")
	}

	now := clock.Now()
	s := &Session{
		key:        opts.Key,
		appID:      opts.ApplicationID,
		pages:      slices.Clone(opts.Pages),
		renderer:   opts.Renderer,
		restrictTo: opts.RestrictTo,
		clock:      clock,
		createdAt:  now,
		editor:     opts.Editor,
		editorAt:   now,
	}
	s.lastActivity.Store(now.UnixNano())
	return s, nil
}

// Key returns the routing key.
func (s *Session) Key() string { return s.key }

// ApplicationID returns the application that owns the reply.
func (s *Session) ApplicationID() string { return s.appID }

// Len returns the number of pages.
func (s *Session) Len() int { return len(s.pages) }

// RestrictedTo returns the only user allowed to navigate, or "".
func (s *Session) RestrictedTo() string { return s.restrictTo }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Index returns the current page index.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// LastActivity returns the time of the last navigation.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(s.clock.Now().UnixNano())
}

func (s *Session) idleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity())
}

// open renders page 0 into the reply, sending it as the first response when
// the interaction has not been acknowledged yet.
func (s *Session) open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateExpired {
		return apperrors.ErrSessionNotFound
	}
	r, err := s.render(ctx, 0)
	if err != nil {
		return err
	}
	if rp, ok := s.editor.(replier); ok {
		err = rp.Reply(ctx, r)
	} else {
		err = s.editor.Edit(ctx, r)
	}
	if err != nil {
		return fmt.Errorf("edit reply: %w", err)
	}
	s.index = 0
	s.shown = r
	s.touch()
	return nil
}

// Navigate moves delta pages from the current one on behalf of userID and
// edits the reply. The target index is clamped to the page range; moving past
// either edge leaves the session where it is.
func (s *Session) Navigate(ctx context.Context, delta int, userID string) error {
	return s.navigate(ctx, delta, userID, nil)
}

// navigate is Navigate with an optional fresher edit target. A component
// interaction token outlives the original one, so later edits use it.
func (s *Session) navigate(ctx context.Context, delta int, userID string, ed Editor) error {
	if s.restrictTo != "" && userID != s.restrictTo {
		return apperrors.ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateExpired {
		return apperrors.ErrSessionNotFound
	}
	s.touch()
	if ed != nil {
		s.editor = ed
		s.editorAt = s.clock.Now()
	}

	target := min(max(s.index+delta, 0), len(s.pages)-1)
	if target == s.index {
		return nil
	}

	r, err := s.render(ctx, target)
	if err != nil {
		return err
	}
	if err := s.editor.Edit(ctx, r); err != nil {
		return fmt.Errorf("edit reply: %w", err)
	}
	s.index = target
	s.shown = r
	return nil
}

// render produces page i with navigation controls. Must be called with mu held.
func (s *Session) render(ctx context.Context, i int) (*bot.Reply, error) {
	data, err := s.pages[i](ctx)
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", i, err)
	}
	content, err := s.renderer.Render(i, len(s.pages), data)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", i, err)
	}
	return content.reply(s.key, i, len(s.pages))
}

// expire moves the session to StateExpired. With strip set, the navigation
// row is removed from the reply while its token is still valid. Reports
// whether this call did the transition.
func (s *Session) expire(ctx context.Context, strip bool) (bool, error) {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateExpired)) {
		return false, nil
	}
	if !strip || len(s.pages) < 2 {
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shown == nil || s.clock.Since(s.editorAt) >= config.InteractionTokenLifetime {
		return true, nil
	}
	r := *s.shown
	r.Components = slices.DeleteFunc(slices.Clone(r.Components), isNavigationRow)
	if r.Components == nil {
		r.Components = []discordgo.MessageComponent{}
	}
	if err := s.editor.Edit(ctx, &r); err != nil {
		return true, fmt.Errorf("strip navigation: %w", err)
	}
	return true, nil
}
