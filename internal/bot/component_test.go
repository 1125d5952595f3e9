package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type navFunc func(ctx context.Context, ev *ComponentEvent) error

func (f navFunc) HandleNavigation(ctx context.Context, ev *ComponentEvent) error { return f(ctx, ev) }

func newTestComponentRouter(spy *spyResponder, nav NavigationHandler) *ComponentRouter {
	return NewComponentRouter(ComponentRouterConfig{
		Responder:   spy,
		Navigation:  nav,
		Clock:       clockwork.NewFakeClock(),
		AckDeadline: 2500 * time.Millisecond,
	})
}

func TestComponentRouter_Dispatch(t *testing.T) {
	t.Parallel()
	spy := &spyResponder{}
	r := newTestComponentRouter(spy, nil)

	var got CustomID
	require.NoError(t, r.Register("anime", func(ctx context.Context, ev *ComponentEvent) error {
		got = ev.ID
		return ev.Update(ctx, Text("details"))
	}))

	require.NoError(t, r.Dispatch(context.Background(), componentInteraction("anime.info.42")))
	assert.Equal(t, "anime", got.Kind)
	assert.Equal(t, []string{"info", "42"}, got.Segments)

	acks := spy.Acks()
	require.Len(t, acks, 1)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, acks[0].Type)
	assert.Equal(t, "details", respContent(acks[0]))
}

func TestComponentRouter_Unroutable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		customID string
	}{
		{"unknown kind", "stale.button"},
		{"empty kind", ".next"},
		{"page without navigation", "page.123.next"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spy := &spyResponder{}
			r := newTestComponentRouter(spy, nil)
			require.NoError(t, r.Register("anime", func(context.Context, *ComponentEvent) error {
				t.Error("handler must not run")
				return nil
			}))

			err := r.Dispatch(context.Background(), componentInteraction(tt.customID))
			require.ErrorIs(t, err, apperrors.ErrUnroutableComponent)

			// Acknowledged silently so the client stops waiting.
			acks := spy.Acks()
			require.Len(t, acks, 1)
			assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, acks[0].Type)
		})
	}
}

func TestComponentRouter_PageKindGoesToNavigation(t *testing.T) {
	t.Parallel()
	spy := &spyResponder{}
	var seen string
	r := newTestComponentRouter(spy, navFunc(func(ctx context.Context, ev *ComponentEvent) error {
		seen = ev.ID.String()
		return ev.Ack(ctx)
	}))

	require.NoError(t, r.Dispatch(context.Background(), componentInteraction("page.123.next")))
	assert.Equal(t, "page.123.next", seen)
	require.Len(t, spy.Acks(), 1)
}

func TestComponentRouter_NavigationErrorIsReturned(t *testing.T) {
	t.Parallel()
	spy := &spyResponder{}
	r := newTestComponentRouter(spy, navFunc(func(ctx context.Context, ev *ComponentEvent) error {
		return apperrors.ErrSessionNotFound
	}))

	err := r.Dispatch(context.Background(), componentInteraction("page.123.next"))
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	require.ErrorIs(t, err, apperrors.ErrUnroutableComponent)

	// No generic failure message on top; just the silent acknowledgement.
	acks := spy.Acks()
	require.Len(t, acks, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, acks[0].Type)
	assert.Empty(t, spy.Followups())
}

func TestComponentRouter_Register(t *testing.T) {
	t.Parallel()
	r := newTestComponentRouter(&spyResponder{}, nil)
	noop := func(context.Context, *ComponentEvent) error { return nil }

	require.NoError(t, r.Register("anime", noop))
	require.Error(t, r.Register("anime", noop), "duplicate kind")
	require.Error(t, r.Register(PaginationKind, noop), "reserved kind")
	require.Error(t, r.Register("", noop))
	require.Error(t, r.Register("a.b", noop))
	require.Error(t, r.Register("settings", nil))
	assert.Equal(t, 1, r.Kinds())
}

func TestComponentRouter_HandlerFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler ComponentHandler
	}{
		{"error", func(context.Context, *ComponentEvent) error { return errors.New("boom") }},
		{"panic", func(context.Context, *ComponentEvent) error { panic("boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spy := &spyResponder{}
			r := newTestComponentRouter(spy, nil)
			require.NoError(t, r.Register("anime", tt.handler))

			require.Error(t, r.Dispatch(context.Background(), componentInteraction("anime.info.1")))

			acks := spy.Acks()
			require.Len(t, acks, 1)
			assert.True(t, isEphemeral(acks[0]))
			assert.Equal(t, MsgGenericFailure, respContent(acks[0]))
		})
	}
}

func TestComponentRouter_SilentHandlerIsAcked(t *testing.T) {
	t.Parallel()
	spy := &spyResponder{}
	r := newTestComponentRouter(spy, nil)
	require.NoError(t, r.Register("anime", func(context.Context, *ComponentEvent) error { return nil }))

	require.NoError(t, r.Dispatch(context.Background(), componentInteraction("anime.noop")))

	acks := spy.Acks()
	require.Len(t, acks, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, acks[0].Type)
}

func TestComponentRouter_AckSafetyNet(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	spy := &spyResponder{}
	r := NewComponentRouter(ComponentRouterConfig{Responder: spy, Clock: clock, AckDeadline: 2500 * time.Millisecond})

	release := make(chan struct{})
	require.NoError(t, r.Register("anime", func(ctx context.Context, ev *ComponentEvent) error {
		<-release
		return ev.Update(ctx, Text("late"))
	}))

	done := make(chan error, 1)
	go func() { done <- r.Dispatch(context.Background(), componentInteraction("anime.info.1")) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(3 * time.Second)

	require.Eventually(t, func() bool { return len(spy.Acks()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, spy.Acks()[0].Type)

	close(release)
	require.NoError(t, <-done)

	edits := spy.Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, "late", editContent(edits[0]))
}
