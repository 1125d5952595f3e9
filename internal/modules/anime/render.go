package anime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/anilist"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/config"
	"github.com/garyellow/guildbot-go/internal/pagination"
	"github.com/garyellow/guildbot-go/internal/storage"
)

const (
	colorAniList = 0x02A9FF

	selectLabelMax       = 100
	selectDescriptionMax = 100
	infoDescriptionMax   = 600
)

// searchRenderer renders one chunk of search results as an embed plus a
// select menu whose custom ID carries the chunk index.
func searchRenderer(query string, perPage int) pagination.Renderer {
	return pagination.RendererFunc(func(index, total int, data any) (pagination.Content, error) {
		chunk, ok := data.([]anilist.Media)
		if !ok {
			return pagination.Content{}, fmt.Errorf("anime: unexpected page data %T", data)
		}

		var b strings.Builder
		options := make([]discordgo.SelectMenuOption, 0, len(chunk))
		for n, m := range chunk {
			rank := index*perPage + n + 1
			fmt.Fprintf(&b, "**%d.** %s\n", rank, mediaLink(m))
			if line := mediaFacts(m); line != "" {
				fmt.Fprintf(&b, "%s\n", line)
			}
			options = append(options, discordgo.SelectMenuOption{
				Label:       truncate(fmt.Sprintf("%d. %s", rank, m.DisplayTitle()), selectLabelMax),
				Value:       strconv.Itoa(m.ID),
				Description: truncate(mediaFacts(m), selectDescriptionMax),
			})
		}

		menuID, err := bot.NewCustomID(ComponentKind, actionInfo, strconv.Itoa(index))
		if err != nil {
			return pagination.Content{}, err
		}

		embed := &discordgo.MessageEmbed{
			Title:       truncate(fmt.Sprintf("Search results for “%s”", query), 256),
			Description: truncate(b.String(), config.DiscordMaxEmbedDescription),
			Color:       colorAniList,
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d · data from AniList", index+1, total)},
		}
		return pagination.Content{
			Embeds: []*discordgo.MessageEmbed{embed},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    menuID,
						Placeholder: "Show details…",
						Options:     options,
					},
				}},
			},
		}, nil
	})
}

// subscriptionRenderer renders one chunk of a member's subscriptions.
func subscriptionRenderer(perPage int) pagination.Renderer {
	return pagination.RendererFunc(func(index, total int, data any) (pagination.Content, error) {
		chunk, ok := data.([]storage.Subscription)
		if !ok {
			return pagination.Content{}, fmt.Errorf("anime: unexpected page data %T", data)
		}
		var b strings.Builder
		for n, s := range chunk {
			fmt.Fprintf(&b, "**%d.** %s `#%d` · since <t:%d:d>\n", index*perPage+n+1, s.Title, s.AnimeID, s.CreatedAt.Unix())
		}
		return pagination.Content{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Your subscriptions",
				Description: b.String(),
				Color:       colorAniList,
				Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d", index+1, total)},
			}},
		}, nil
	})
}

// detailEmbed is the full card shown for a selected title.
func detailEmbed(m *anilist.Media) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       truncate(m.DisplayTitle(), 256),
		URL:         m.SiteURL,
		Description: m.PlainDescription(infoDescriptionMax),
		Color:       colorAniList,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("AniList #%d · /anime subscribe id:%d", m.ID, m.ID)},
	}
	if m.CoverImage.Large != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: m.CoverImage.Large}
	}

	field := func(name, value string) {
		if value != "" {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: name, Value: value, Inline: true})
		}
	}
	field("Format", humanize(m.Format))
	field("Status", humanize(m.Status))
	if m.Episodes > 0 {
		field("Episodes", strconv.Itoa(m.Episodes))
	}
	if m.SeasonYear > 0 {
		field("Season", strings.TrimSpace(humanize(m.Season)+" "+strconv.Itoa(m.SeasonYear)))
	}
	if m.AverageScore > 0 {
		field("Score", fmt.Sprintf("%d%%", m.AverageScore))
	}
	if len(m.Genres) > 0 {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Genres", Value: strings.Join(m.Genres, ", ")})
	}
	if m.Title.Native != "" && m.Title.Native != m.DisplayTitle() {
		e.Author = &discordgo.MessageEmbedAuthor{Name: m.Title.Native}
	}
	return e
}

func mediaLink(m anilist.Media) string {
	title := m.DisplayTitle()
	if m.SiteURL == "" {
		return "**" + title + "**"
	}
	return fmt.Sprintf("[%s](%s)", title, m.SiteURL)
}

// mediaFacts is the one-line summary: format, episodes, year, score.
func mediaFacts(m anilist.Media) string {
	var parts []string
	if m.Format != "" {
		parts = append(parts, humanize(m.Format))
	}
	if m.Episodes > 0 {
		parts = append(parts, fmt.Sprintf("%d eps", m.Episodes))
	}
	if m.SeasonYear > 0 {
		parts = append(parts, strconv.Itoa(m.SeasonYear))
	}
	if m.AverageScore > 0 {
		parts = append(parts, fmt.Sprintf("★ %d%%", m.AverageScore))
	}
	return strings.Join(parts, " · ")
}

// humanize turns an AniList enum like "NOT_YET_RELEASED" into "Not yet released".
// Short all-caps values such as "TV" and "OVA" are kept.
func humanize(enum string) string {
	if enum == "" || len(enum) <= 3 {
		return enum
	}
	s := strings.ToLower(strings.ReplaceAll(enum, "_", " "))
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
