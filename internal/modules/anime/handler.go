// Package anime implements the /anime command: AniList search with paginated
// results, per-member subscriptions and a detail view for selected titles.
package anime

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/anilist"
	"github.com/garyellow/guildbot-go/internal/bot"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/pagination"
	"github.com/garyellow/guildbot-go/internal/storage"
)

// Module constants
const (
	ModuleName    = "anime"
	ComponentKind = "anime"

	actionInfo = "info"

	// searchLimit is how many results one search fetches (5 pages of 5).
	searchLimit = 25
)

// User-facing messages.
const (
	msgNoResults       = "No anime found for “%s”."
	msgNotFound        = "AniList has no anime with id %d."
	msgSubscribed      = "🔔 Subscribed to **%s**."
	msgAlreadySub      = "You are already subscribed to **%s**."
	msgUnsubscribed    = "🔕 Unsubscribed from #%d."
	msgNotSubscribed   = "You are not subscribed to #%d."
	msgNoSubscriptions = "You have no subscriptions yet. Find a title with `/anime search` and use `/anime subscribe`."
	msgGuildOnly       = "Subscriptions only work inside a server."
	msgSelectionGone   = "That selection is no longer available."
)

// Searcher looks up anime. *anilist.Client implements it.
type Searcher interface {
	SearchAnime(ctx context.Context, search string, perPage int) ([]anilist.Media, error)
	GetAnime(ctx context.Context, id int) (*anilist.Media, error)
}

// Handler handles the anime module.
type Handler struct {
	anilist  Searcher
	subs     storage.SubscriptionRepository
	pages    *pagination.Registry
	logger   *logger.Logger
	perPage  int
	searchEW *apperrors.ErrorWrapper
	infoEW   *apperrors.ErrorWrapper
	subEW    *apperrors.ErrorWrapper
}

// NewHandler creates a new anime handler. perPage is the number of titles
// shown on one result page.
func NewHandler(searcher Searcher, subs storage.SubscriptionRepository, pages *pagination.Registry, log *logger.Logger, perPage int) *Handler {
	if perPage <= 0 {
		perPage = 5
	}
	return &Handler{
		anilist:  searcher,
		subs:     subs,
		pages:    pages,
		logger:   log,
		perPage:  perPage,
		searchEW: apperrors.NewWrapper(ModuleName, "search"),
		infoEW:   apperrors.NewWrapper(ModuleName, "info"),
		subEW:    apperrors.NewWrapper(ModuleName, "subscribe"),
	}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// ComponentKind returns the custom ID kind owned by this module.
func (h *Handler) ComponentKind() string {
	return ComponentKind
}

// Commands returns the /anime command.
func (h *Handler) Commands() []*bot.CommandDescriptor {
	minID := 1.0
	idOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "id",
		Description: "AniList id (shown in search details)",
		Required:    true,
		MinValue:    &minID,
	}

	return []*bot.CommandDescriptor{{
		Name:        "anime",
		Description: "Search AniList and manage subscriptions",
		Subcommands: map[string]*bot.Subcommand{
			"search": {
				Description: "Search anime by title",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Title to look for",
					Required:    true,
					MaxLength:   100,
				}},
				Deferred: true,
				Handler:  h.handleSearch,
			},
			"subscribe": {
				Description: "Subscribe to an anime",
				Options:     []*discordgo.ApplicationCommandOption{idOption},
				Deferred:    true,
				Ephemeral:   true,
				Handler:     h.handleSubscribe,
			},
			"unsubscribe": {
				Description: "Remove a subscription",
				Options:     []*discordgo.ApplicationCommandOption{idOption},
				Ephemeral:   true,
				Handler:     h.handleUnsubscribe,
			},
			"list": {
				Description: "List your subscriptions",
				Deferred:    true,
				Handler:     h.handleList,
			},
		},
	}}
}

func (h *Handler) handleSearch(ctx context.Context, inv *bot.Invocation) error {
	query := inv.String("query")
	log := h.logger.WithModule(ModuleName).WithField("query", query)

	results, err := h.anilist.SearchAnime(ctx, query, searchLimit)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return h.searchEW.Wrap(err, "Please enter a title to search for.")
		}
		return fmt.Errorf("search %q: %w", query, err)
	}
	log.WithField("results", len(results)).Debug("Search completed")

	if len(results) == 0 {
		return inv.Reply(ctx, bot.Text(fmt.Sprintf(msgNoResults, query)))
	}

	_, err = h.pages.Open(ctx, pagination.Options{
		Key:           inv.Interaction.ID,
		ApplicationID: inv.Interaction.AppID,
		Pages:         pagination.Chunk(results, h.perPage),
		Renderer:      searchRenderer(query, h.perPage),
		Editor:        inv,
	})
	return err
}

func (h *Handler) handleSubscribe(ctx context.Context, inv *bot.Invocation) error {
	if inv.GuildID == "" {
		return inv.Reply(ctx, bot.EphemeralText(msgGuildOnly))
	}
	id := int(inv.Int("id"))

	media, err := h.anilist.GetAnime(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) {
			return h.subEW.Wrapf(err, msgNotFound, id)
		}
		return fmt.Errorf("look up anime %d: %w", id, err)
	}

	created, err := h.subs.AddSubscription(ctx, inv.GuildID, inv.UserID, &storage.Subscription{
		AnimeID: media.ID,
		Title:   media.DisplayTitle(),
	})
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	msg := msgSubscribed
	if !created {
		msg = msgAlreadySub
	}
	return inv.Reply(ctx, bot.EphemeralText(fmt.Sprintf(msg, media.DisplayTitle())))
}

func (h *Handler) handleUnsubscribe(ctx context.Context, inv *bot.Invocation) error {
	if inv.GuildID == "" {
		return inv.Reply(ctx, bot.EphemeralText(msgGuildOnly))
	}
	id := int(inv.Int("id"))

	removed, err := h.subs.RemoveSubscription(ctx, inv.GuildID, inv.UserID, id)
	if err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	msg := msgUnsubscribed
	if !removed {
		msg = msgNotSubscribed
	}
	return inv.Reply(ctx, bot.EphemeralText(fmt.Sprintf(msg, id)))
}

func (h *Handler) handleList(ctx context.Context, inv *bot.Invocation) error {
	if inv.GuildID == "" {
		return inv.Reply(ctx, bot.Text(msgGuildOnly))
	}
	subs, err := h.subs.ListSubscriptions(ctx, inv.GuildID, inv.UserID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return inv.Reply(ctx, bot.Text(msgNoSubscriptions))
	}

	_, err = h.pages.Open(ctx, pagination.Options{
		Key:           inv.Interaction.ID,
		ApplicationID: inv.Interaction.AppID,
		Pages:         pagination.Chunk(subs, h.perPage),
		Renderer:      subscriptionRenderer(h.perPage),
		RestrictTo:    inv.UserID,
		Editor:        inv,
	})
	return err
}

// HandleComponent shows the details of a title picked from a search page.
// Custom ID: "anime.info.<chunk>", the selected value is the AniList id.
func (h *Handler) HandleComponent(ctx context.Context, ev *bot.ComponentEvent) error {
	if ev.ID.Segment(0) != actionInfo {
		return fmt.Errorf("%w: anime action %q", apperrors.ErrUnroutableComponent, ev.ID.Segment(0))
	}
	if _, ok := ev.ID.Index(); !ok || len(ev.Values) != 1 {
		return h.infoEW.Wrap(apperrors.NewValidationError("values", "expected one selected title"), msgSelectionGone)
	}
	id, err := strconv.Atoi(ev.Values[0])
	if err != nil {
		return h.infoEW.Wrap(apperrors.NewValidationError("values", err.Error()), msgSelectionGone)
	}

	if err := ev.Defer(ctx, true); err != nil {
		return fmt.Errorf("defer details: %w", err)
	}
	media, err := h.anilist.GetAnime(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return h.infoEW.Wrapf(err, msgNotFound, id)
		}
		return fmt.Errorf("look up anime %d: %w", id, err)
	}
	return ev.Edit(ctx, &bot.Reply{Embeds: []*discordgo.MessageEmbed{detailEmbed(media)}})
}
