package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/garyellow/guildbot-go/internal/ratelimit"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInteractionAPI struct {
	responds  atomic.Int32
	edits     atomic.Int32
	followups atomic.Int32
	err       error
}

func (f *fakeInteractionAPI) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	f.responds.Add(1)
	return f.err
}

func (f *fakeInteractionAPI) InteractionResponseEdit(*discordgo.Interaction, *discordgo.WebhookEdit, ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ID: "m1"}, nil
}

func (f *fakeInteractionAPI) FollowupMessageCreate(_ *discordgo.Interaction, wait bool, _ *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.followups.Add(1)
	if !wait {
		return nil, errors.New("followups must wait for the message")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ID: "m2"}, nil
}

func TestNewRESTResponder_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewRESTResponder(ResponderConfig{RequestsPerSecond: 1})
	require.Error(t, err)
	_, err = NewRESTResponder(ResponderConfig{API: &fakeInteractionAPI{}})
	require.Error(t, err)
}

func TestRESTResponder_Calls(t *testing.T) {
	t.Parallel()
	api := &fakeInteractionAPI{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r, err := NewRESTResponder(ResponderConfig{API: api, RequestsPerSecond: 10, Metrics: m})
	require.NoError(t, err)

	ctx := context.Background()
	i := &discordgo.Interaction{ID: "1"}
	require.NoError(t, r.Acknowledge(ctx, i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}))
	msg, err := r.EditOriginal(ctx, i, &discordgo.WebhookEdit{})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	msg, err = r.SendFollowup(ctx, i, &discordgo.WebhookParams{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)

	assert.EqualValues(t, 1, api.responds.Load())
	assert.EqualValues(t, 1, api.edits.Load())
	assert.EqualValues(t, 1, api.followups.Load())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UpstreamRequestsTotal.WithLabelValues("discord", "success")))
}

func TestRESTResponder_GlobalBucket(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	api := &fakeInteractionAPI{}
	r, err := NewRESTResponder(ResponderConfig{API: api, RequestsPerSecond: 2, Clock: clock})
	require.NoError(t, err)

	ctx := context.Background()
	i := &discordgo.Interaction{ID: "1"}
	require.NoError(t, r.Acknowledge(ctx, i, &discordgo.InteractionResponse{}))
	require.NoError(t, r.Acknowledge(ctx, i, &discordgo.InteractionResponse{}))

	done := make(chan error, 1)
	go func() { done <- r.Acknowledge(ctx, i, &discordgo.InteractionResponse{}) }()

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.EqualValues(t, 2, api.responds.Load(), "third call waits for a token")

	clock.Advance(time.Second)
	require.NoError(t, <-done)
	assert.EqualValues(t, 3, api.responds.Load())
}

func TestRESTResponder_WaitCanceled(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	api := &fakeInteractionAPI{}
	r, err := NewRESTResponder(ResponderConfig{API: api, RequestsPerSecond: 1, Clock: clock})
	require.NoError(t, err)

	i := &discordgo.Interaction{ID: "1"}
	require.NoError(t, r.Acknowledge(context.Background(), i, &discordgo.InteractionResponse{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.EditOriginal(ctx, i, &discordgo.WebhookEdit{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, api.edits.Load())
}

func TestRESTError(t *testing.T) {
	t.Parallel()

	unknown := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound, Header: http.Header{}},
		Message:  &discordgo.APIErrorMessage{Code: 10062, Message: "Unknown interaction"},
	}
	err := restError(unknown)
	var ue *apperrors.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
	assert.Contains(t, err.Error(), "10062")
	assert.ErrorIs(t, err, unknown)

	throttled := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"3"}}},
	}
	retryAfter, ok := ratelimit.IsThrottled(restError(throttled))
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, retryAfter)

	assert.ErrorIs(t, restError(context.DeadlineExceeded), context.DeadlineExceeded)
	assert.False(t, apperrors.NeedsAttention(restError(context.Canceled)))

	plain := restError(errors.New("connection reset"))
	assert.ErrorIs(t, plain, apperrors.ErrUpstreamFailure)
}

func TestRESTResponder_ErrorWrapsOperation(t *testing.T) {
	t.Parallel()
	api := &fakeInteractionAPI{err: errors.New("boom")}
	r, err := NewRESTResponder(ResponderConfig{API: api, RequestsPerSecond: 10})
	require.NoError(t, err)

	_, err = r.SendFollowup(context.Background(), &discordgo.Interaction{}, &discordgo.WebhookParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "followup")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamFailure)
}
