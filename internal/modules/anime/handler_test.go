package anime

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/anilist"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/bot/bottest"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/pagination"
	"github.com/garyellow/guildbot-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results []anilist.Media
	err     error
	queries []string
}

func (f *fakeSearcher) SearchAnime(_ context.Context, search string, _ int) ([]anilist.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, search)
	return f.results, f.err
}

func (f *fakeSearcher) GetAnime(_ context.Context, id int) (*anilist.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range f.results {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("anilist: %w", apperrors.ErrNotFound)
}

func sampleMedia(n int) []anilist.Media {
	out := make([]anilist.Media, n)
	for i := range out {
		out[i] = anilist.Media{
			ID:       i + 1,
			Title:    anilist.Title{Romaji: fmt.Sprintf("Title %d", i+1)},
			Format:   "TV",
			Episodes: 12,
			SiteURL:  fmt.Sprintf("https://anilist.co/anime/%d", i+1),
		}
	}
	return out
}

type fixture struct {
	*bottest.Harness
	searcher *fakeSearcher
	db       *storage.DB
}

func newFixture(t *testing.T, results []anilist.Media) *fixture {
	t.Helper()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hs := bottest.NewHarness(t, nil)
	searcher := &fakeSearcher{results: results}
	h := NewHandler(searcher, db, hs.Pages, logger.New("error"), 5)
	require.NoError(t, hs.Modules.Register(h))
	return &fixture{Harness: hs, searcher: searcher, db: db}
}

func selectMenuID(t *testing.T, components []discordgo.MessageComponent) string {
	t.Helper()
	require.NotEmpty(t, components)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	menu, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok, "first row holds the select menu")
	return menu.CustomID
}

func TestHandler_Metadata(t *testing.T) {
	t.Parallel()
	h := NewHandler(&fakeSearcher{}, nil, nil, logger.New("error"), 0)
	assert.Equal(t, ModuleName, h.Name())
	assert.Equal(t, ComponentKind, h.ComponentKind())

	cmds := h.Commands()
	require.Len(t, cmds, 1)
	def := cmds[0].Definition()
	assert.Equal(t, "anime", def.Name)
	names := make([]string, 0, len(def.Options))
	for _, o := range def.Options {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"search", "subscribe", "unsubscribe", "list"}, names)
}

func TestSearch_PaginatesAndSelects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, sampleMedia(7))
	ctx := context.Background()

	err := f.Commands.Dispatch(ctx, bottest.Command("i1", "u1", "anime", bottest.Sub("search", bottest.StringOpt("query", "title"))))
	require.NoError(t, err)

	acks := f.Responder.Acks()
	require.Len(t, acks, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, acks[0].Type)
	assert.Equal(t, []string{"title"}, f.searcher.queries)

	first := f.Responder.LastEdit(t)
	embeds := bottest.EditEmbeds(first)
	require.Len(t, embeds, 1)
	assert.Contains(t, embeds[0].Title, "title")
	assert.Contains(t, embeds[0].Description, "Title 1")
	assert.NotContains(t, embeds[0].Description, "Title 6")
	components := bottest.EditComponents(first)
	assert.Equal(t, "anime.info.0", selectMenuID(t, components))
	assert.Len(t, components, 2, "select row plus navigation row")
	require.NotNil(t, f.Pages.Get("i1"))

	// Anyone can page through public search results.
	require.NoError(t, f.Components.Dispatch(ctx, bottest.Button("i2", "u2", "page.i1.next")))
	acks = f.Responder.Acks()
	require.Len(t, acks, 2)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, acks[1].Type)
	assert.Equal(t, "anime.info.1", selectMenuID(t, acks[1].Data.Components))
	assert.Contains(t, acks[1].Data.Embeds[0].Description, "Title 6")

	// Picking a title shows its details privately.
	require.NoError(t, f.Components.Dispatch(ctx, bottest.Select("i3", "u2", "anime.info.1", "6")))
	acks = f.Responder.Acks()
	require.Len(t, acks, 3)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, acks[2].Type)
	assert.True(t, bottest.IsEphemeral(acks[2]))
	detail := bottest.EditEmbeds(f.Responder.LastEdit(t))
	require.Len(t, detail, 1)
	assert.Equal(t, "Title 6", detail[0].Title)
	assert.Equal(t, "https://anilist.co/anime/6", detail[0].URL)
}

func TestSearch_NoResults(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	err := f.Commands.Dispatch(context.Background(), bottest.Command("i1", "u1", "anime", bottest.Sub("search", bottest.StringOpt("query", "zzz"))))
	require.NoError(t, err)
	assert.Contains(t, bottest.EditContent(f.Responder.LastEdit(t)), "No anime found for “zzz”")
	assert.Zero(t, f.Pages.Len())
}

func TestSearch_UpstreamFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.searcher.err = apperrors.NewUpstreamError("anilist", 500, fmt.Errorf("boom"))

	err := f.Commands.Dispatch(context.Background(), bottest.Command("i1", "u1", "anime", bottest.Sub("search", bottest.StringOpt("query", "x"))))
	require.ErrorIs(t, err, apperrors.ErrUpstreamFailure)
	assert.Equal(t, bot.MsgGenericFailure, bottest.EditContent(f.Responder.LastEdit(t)))
}

func TestSearch_Throttled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.searcher.err = fmt.Errorf("%w: anilist gave up", apperrors.ErrRateLimitExhausted)

	err := f.Commands.Dispatch(context.Background(), bottest.Command("i1", "u1", "anime", bottest.Sub("search", bottest.StringOpt("query", "x"))))
	require.Error(t, err)
	assert.Equal(t, bot.MsgBusy, bottest.EditContent(f.Responder.LastEdit(t)))
}

func TestSubscribeLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, sampleMedia(3))
	ctx := context.Background()
	subscribe := func(id string) *discordgo.Interaction {
		return bottest.Command(id, "u1", "anime", bottest.Sub("subscribe", bottest.IntOpt("id", 2)))
	}

	require.NoError(t, f.Commands.Dispatch(ctx, subscribe("i1")))
	acks := f.Responder.Acks()
	require.Len(t, acks, 1)
	assert.True(t, bottest.IsEphemeral(acks[0]))
	assert.Contains(t, bottest.EditContent(f.Responder.LastEdit(t)), "Subscribed to **Title 2**")

	require.NoError(t, f.Commands.Dispatch(ctx, subscribe("i2")))
	assert.Contains(t, bottest.EditContent(f.Responder.LastEdit(t)), "already subscribed")

	subs, err := f.db.ListSubscriptions(ctx, "guild-1", "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, 2, subs[0].AnimeID)

	require.NoError(t, f.Commands.Dispatch(ctx, bottest.Command("i3", "u1", "anime", bottest.Sub("unsubscribe", bottest.IntOpt("id", 2)))))
	acks = f.Responder.Acks()
	last := acks[len(acks)-1]
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, last.Type)
	assert.True(t, bottest.IsEphemeral(last))
	assert.Contains(t, last.Data.Content, "Unsubscribed from #2")

	require.NoError(t, f.Commands.Dispatch(ctx, bottest.Command("i4", "u1", "anime", bottest.Sub("unsubscribe", bottest.IntOpt("id", 2)))))
	acks = f.Responder.Acks()
	assert.Contains(t, acks[len(acks)-1].Data.Content, "not subscribed to #2")
}

func TestSubscribe_UnknownAnime(t *testing.T) {
	t.Parallel()
	f := newFixture(t, sampleMedia(1))

	err := f.Commands.Dispatch(context.Background(), bottest.Command("i1", "u1", "anime", bottest.Sub("subscribe", bottest.IntOpt("id", 99))))
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "AniList has no anime with id 99.", bottest.EditContent(f.Responder.LastEdit(t)))
}

func TestList_RestrictedToInvoker(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	for id := 1; id <= 6; id++ {
		_, err := f.db.AddSubscription(ctx, "guild-1", "u1", &storage.Subscription{AnimeID: id, Title: fmt.Sprintf("Title %d", id)})
		require.NoError(t, err)
	}

	require.NoError(t, f.Commands.Dispatch(ctx, bottest.Command("i1", "u1", "anime", bottest.Sub("list"))))
	first := bottest.EditEmbeds(f.Responder.LastEdit(t))
	require.Len(t, first, 1)
	assert.Contains(t, first[0].Description, "Title 1")
	assert.Equal(t, "u1", f.Pages.Get("i1").RestrictedTo())

	err := f.Components.Dispatch(ctx, bottest.Button("i2", "u2", "page.i1.next"))
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, 0, f.Pages.Get("i1").Index())

	require.NoError(t, f.Components.Dispatch(ctx, bottest.Button("i3", "u1", "page.i1.next")))
	assert.Equal(t, 1, f.Pages.Get("i1").Index())
}

func TestList_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	require.NoError(t, f.Commands.Dispatch(context.Background(), bottest.Command("i1", "u1", "anime", bottest.Sub("list"))))
	assert.Contains(t, bottest.EditContent(f.Responder.LastEdit(t)), "no subscriptions yet")
}

func TestHandleComponent_BadSelection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, sampleMedia(1))
	ctx := context.Background()

	tests := []struct {
		name   string
		id     string
		values []string
	}{
		{"no value", "anime.info.0", nil},
		{"not a number", "anime.info.0", []string{"abc"}},
		{"missing chunk", "anime.info", []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &bottest.SpyResponder{}
			components := bot.NewComponentRouter(bot.ComponentRouterConfig{Responder: spy, Navigation: f.Pages})
			require.NoError(t, components.Register(ComponentKind, NewHandler(f.searcher, f.db, f.Pages, logger.New("error"), 5).HandleComponent))

			err := components.Dispatch(ctx, bottest.Select("i1", "u1", tt.id, tt.values...))
			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			acks := spy.Acks()
			require.Len(t, acks, 1)
			assert.True(t, bottest.IsEphemeral(acks[0]))
			assert.Equal(t, msgSelectionGone, acks[0].Data.Content)
		})
	}
}

func TestHandleComponent_UnknownAction(t *testing.T) {
	t.Parallel()
	f := newFixture(t, sampleMedia(1))

	err := f.Components.Dispatch(context.Background(), bottest.Select("i1", "u1", "anime.rate.0", "1"))
	require.ErrorIs(t, err, apperrors.ErrUnroutableComponent)
	acks := f.Responder.Acks()
	require.Len(t, acks, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, acks[0].Type)
}

func TestRenderHelpers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "TV", humanize("TV"))
	assert.Equal(t, "Not yet released", humanize("NOT_YET_RELEASED"))
	assert.Equal(t, "ab…", truncate("abcd", 3))
	assert.Equal(t, "TV · 12 eps · 2024 · ★ 80%", mediaFacts(anilist.Media{Format: "TV", Episodes: 12, SeasonYear: 2024, AverageScore: 80}))

	content, err := searchRenderer("q", 5).Render(0, 1, "wrong type")
	require.Error(t, err)
	assert.Empty(t, content.Embeds)

	var _ pagination.Renderer = subscriptionRenderer(5)
}
