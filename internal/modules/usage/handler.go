// Package usage implements /usage, which shows a member how much of their
// interaction quota is left and how busy the AniList queue is.
package usage

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/ratelimit"
)

// ModuleName is the usage module name.
const ModuleName = "usage"

const (
	colorHealthy = 0x57F287
	colorLow     = 0xFEE75C
	colorEmpty   = 0xED4245

	barWidth = 10
)

// QuotaReader reports per-user quota. *ratelimit.KeyedLimiter implements it.
type QuotaReader interface {
	GetUsageStats(key string) ratelimit.UsageStats
}

// QueueReporter reports the upstream request queue. *ratelimit.Scheduler implements it.
type QueueReporter interface {
	Stats() ratelimit.Stats
}

// Handler handles /usage.
type Handler struct {
	quota  QuotaReader
	queue  QueueReporter
	logger *logger.Logger
}

// NewHandler creates a new usage handler. quota and queue may be nil; the
// matching section is then left out.
func NewHandler(quota QuotaReader, queue QueueReporter, log *logger.Logger) *Handler {
	return &Handler{quota: quota, queue: queue, logger: log}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// Commands returns the /usage command.
func (h *Handler) Commands() []*bot.CommandDescriptor {
	return []*bot.CommandDescriptor{{
		Name:        "usage",
		Description: "Show your remaining interaction quota",
		Ephemeral:   true,
		Handler:     h.handleUsage,
	}}
}

func (h *Handler) handleUsage(ctx context.Context, inv *bot.Invocation) error {
	h.logger.WithModule(ModuleName).WithField("user_id", inv.UserID).Debug("Handling usage query")

	embed := &discordgo.MessageEmbed{
		Title: "📊 Usage",
		Color: colorHealthy,
	}
	if h.quota != nil {
		stats := h.quota.GetUsageStats(inv.UserID)
		embed.Color = quotaColor(stats)
		embed.Fields = append(embed.Fields, quotaFields(stats)...)
	}
	if h.queue != nil {
		embed.Fields = append(embed.Fields, queueField(h.queue.Stats()))
	}
	if len(embed.Fields) == 0 {
		embed.Description = "No limits are configured."
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Every command, button and menu uses one interaction."}

	return inv.Reply(ctx, &bot.Reply{Ephemeral: true, Embeds: []*discordgo.MessageEmbed{embed}})
}

func quotaFields(stats ratelimit.UsageStats) []*discordgo.MessageEmbedField {
	available := int(math.Floor(stats.BurstAvailable))
	limit := int(stats.BurstMax)

	fields := []*discordgo.MessageEmbedField{{
		Name:  "⚡ Interactions",
		Value: fmt.Sprintf("%s\n%d / %d available\n%s", progressBar(stats.BurstAvailable, stats.BurstMax), available, limit, refillText(stats.BurstRefillRate)),
	}}
	if stats.WindowRemaining >= 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "🕐 Window",
			Value:  fmt.Sprintf("%d / %d left per %s", stats.WindowRemaining, stats.WindowLimit, stats.Window),
			Inline: true,
		})
	}
	return fields
}

func queueField(stats ratelimit.Stats) *discordgo.MessageEmbedField {
	value := "Idle"
	if stats.Queued > 0 || stats.InFlight > 0 {
		value = fmt.Sprintf("%d running, %d waiting", stats.InFlight, stats.Queued)
	}
	return &discordgo.MessageEmbedField{Name: "📡 AniList queue", Value: value, Inline: true}
}

func refillText(rate float64) string {
	switch {
	case rate <= 0:
		return "Does not refill"
	case rate >= 1:
		return fmt.Sprintf("Refills %.1f per second", rate)
	default:
		return fmt.Sprintf("Refills 1 every %.0f seconds", 1/rate)
	}
}

// progressBar renders available/limit as a fixed-width bar.
func progressBar(available, limit float64) string {
	filled := 0
	if limit > 0 {
		filled = int(math.Round(available / limit * barWidth))
	}
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func quotaColor(stats ratelimit.UsageStats) int {
	if stats.BurstMax <= 0 {
		return colorHealthy
	}
	ratio := stats.BurstAvailable / stats.BurstMax
	if stats.WindowRemaining == 0 {
		ratio = 0
	}
	switch {
	case ratio < 0.2:
		return colorEmpty
	case ratio < 0.5:
		return colorLow
	default:
		return colorHealthy
	}
}
