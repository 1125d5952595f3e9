package usage

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/bot/bottest"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/ratelimit"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticQueue ratelimit.Stats

func (q staticQueue) Stats() ratelimit.Stats { return ratelimit.Stats(q) }

func dispatchUsage(t *testing.T, h *Handler, userID string) *discordgo.MessageEmbed {
	t.Helper()
	hs := bottest.NewHarness(t, nil)
	require.NoError(t, hs.Modules.Register(h))
	require.NoError(t, hs.Commands.Dispatch(context.Background(), bottest.Command("i1", userID, "usage")))

	acks := hs.Responder.Acks()
	require.Len(t, acks, 1)
	assert.True(t, bottest.IsEphemeral(acks[0]))
	require.Len(t, acks[0].Data.Embeds, 1)
	return acks[0].Data.Embeds[0]
}

func TestUsage_ShowsRemainingQuota(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:        "user",
		Burst:       10,
		RefillRate:  0.5,
		WindowLimit: 100,
		Window:      time.Hour,
		Clock:       clockwork.NewFakeClock(),
	})
	defer limiter.Stop()
	for range 3 {
		require.True(t, limiter.Allow("u1"))
	}

	embed := dispatchUsage(t, NewHandler(limiter, staticQueue{Queued: 2, InFlight: 1}, logger.New("error")), "u1")

	require.Len(t, embed.Fields, 3)
	assert.Contains(t, embed.Fields[0].Value, "7 / 10 available")
	assert.Contains(t, embed.Fields[0].Value, "Refills 1 every 2 seconds")
	assert.Contains(t, embed.Fields[1].Value, "97 / 100 left per 1h0m0s")
	assert.Equal(t, "1 running, 2 waiting", embed.Fields[2].Value)
	assert.Equal(t, colorHealthy, embed.Color)
}

func TestUsage_KeysByInvokingUser(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{Name: "user", Burst: 2, RefillRate: 0.1, Clock: clockwork.NewFakeClock()})
	defer limiter.Stop()
	require.True(t, limiter.Allow("u1"))
	require.True(t, limiter.Allow("u1"))

	embed := dispatchUsage(t, NewHandler(limiter, nil, logger.New("error")), "u2")
	require.Len(t, embed.Fields, 1, "no window and no queue section")
	assert.Contains(t, embed.Fields[0].Value, "2 / 2 available")

	embed = dispatchUsage(t, NewHandler(limiter, nil, logger.New("error")), "u1")
	assert.Contains(t, embed.Fields[0].Value, "0 / 2 available")
	assert.Equal(t, colorEmpty, embed.Color)
}

func TestUsage_NothingConfigured(t *testing.T) {
	t.Parallel()
	embed := dispatchUsage(t, NewHandler(nil, nil, logger.New("error")), "u1")
	assert.Empty(t, embed.Fields)
	assert.Equal(t, "No limits are configured.", embed.Description)
}

func TestProgressBar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		available, limit float64
		want             string
	}{
		{10, 10, "██████████"},
		{0, 10, "░░░░░░░░░░"},
		{5, 10, "█████░░░░░"},
		{3, 0, "░░░░░░░░░░"},
		{12, 10, "██████████"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progressBar(tt.available, tt.limit))
	}
}

func TestQuotaColor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, colorHealthy, quotaColor(ratelimit.UsageStats{BurstAvailable: 8, BurstMax: 10, WindowRemaining: -1}))
	assert.Equal(t, colorLow, quotaColor(ratelimit.UsageStats{BurstAvailable: 3, BurstMax: 10, WindowRemaining: -1}))
	assert.Equal(t, colorEmpty, quotaColor(ratelimit.UsageStats{BurstAvailable: 1, BurstMax: 10, WindowRemaining: -1}))
	assert.Equal(t, colorEmpty, quotaColor(ratelimit.UsageStats{BurstAvailable: 10, BurstMax: 10, WindowRemaining: 0}), "exhausted window")
}

func TestRefillText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Does not refill", refillText(0))
	assert.Equal(t, "Refills 2.0 per second", refillText(2))
	assert.Equal(t, "Refills 1 every 10 seconds", refillText(0.1))
}
