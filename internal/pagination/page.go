// Package pagination keeps interactive multi-page replies alive.
//
// A Session owns one reply and the lazily produced pages behind it. The
// Registry stores live sessions by key, routes navigation buttons to them and
// expires sessions that have been idle for too long. Sessions live in memory
// only; buttons on messages from a previous process are unroutable.
package pagination

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/config"
)

// PageSource produces the data for one page when it is shown.
type PageSource func(ctx context.Context) (any, error)

// Content is a rendered page.
type Content struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// Renderer turns page data into message content. It must not have side
// effects; the session takes care of editing the reply.
type Renderer interface {
	Render(index, total int, data any) (Content, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(index, total int, data any) (Content, error)

// Render calls f.
func (f RendererFunc) Render(index, total int, data any) (Content, error) {
	return f(index, total, data)
}

// Static returns one page per item.
func Static(items ...any) []PageSource {
	pages := make([]PageSource, len(items))
	for i, item := range items {
		pages[i] = func(context.Context) (any, error) { return item, nil }
	}
	return pages
}

// Chunk splits items into pages of at most size items. Each page yields a []T.
func Chunk[T any](items []T, size int) []PageSource {
	if size <= 0 {
		size = 1
	}
	pages := make([]PageSource, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		chunk := items[start:min(start+size, len(items))]
		pages = append(pages, func(context.Context) (any, error) { return chunk, nil })
	}
	return pages
}

// Navigation actions carried in the last custom ID segment.
const (
	ActionFirst = "first"
	ActionPrev  = "prev"
	ActionNext  = "next"
	ActionLast  = "last"
	ActionNoop  = "noop"
)

// navigationRow builds the first / prev / indicator / next / last buttons.
func navigationRow(key string, index, total int) (discordgo.ActionsRow, error) {
	button := func(action, label string, disabled bool) (discordgo.Button, error) {
		id, err := bot.NewCustomID(bot.PaginationKind, key, action)
		if err != nil {
			return discordgo.Button{}, err
		}
		return discordgo.Button{
			CustomID: id,
			Label:    label,
			Style:    discordgo.SecondaryButton,
			Disabled: disabled,
		}, nil
	}

	atStart, atEnd := index == 0, index == total-1
	specs := []struct {
		action, label string
		disabled      bool
	}{
		{ActionFirst, "⏮", atStart},
		{ActionPrev, "◀", atStart},
		{ActionNoop, fmt.Sprintf("%d / %d", index+1, total), true},
		{ActionNext, "▶", atEnd},
		{ActionLast, "⏭", atEnd},
	}

	row := discordgo.ActionsRow{Components: make([]discordgo.MessageComponent, 0, len(specs))}
	for _, spec := range specs {
		b, err := button(spec.action, spec.label, spec.disabled)
		if err != nil {
			return row, err
		}
		row.Components = append(row.Components, b)
	}
	return row, nil
}

// isNavigationRow reports whether c is a row built by navigationRow.
func isNavigationRow(c discordgo.MessageComponent) bool {
	row, ok := c.(discordgo.ActionsRow)
	if !ok || len(row.Components) == 0 {
		return false
	}
	b, ok := row.Components[0].(discordgo.Button)
	if !ok {
		return false
	}
	id, err := bot.ParseCustomID(b.CustomID)
	return err == nil && id.Kind == bot.PaginationKind
}

// reply converts c to a bot reply, appending navigation when there is more
// than one page.
func (c Content) reply(key string, index, total int) (*bot.Reply, error) {
	components := make([]discordgo.MessageComponent, 0, len(c.Components)+1)
	components = append(components, c.Components...)
	if total > 1 {
		if len(components) >= config.DiscordMaxActionRows {
			return nil, fmt.Errorf("page %d uses all %d component rows, none left for navigation", index, config.DiscordMaxActionRows)
		}
		row, err := navigationRow(key, index, total)
		if err != nil {
			return nil, err
		}
		components = append(components, row)
	}
	return &bot.Reply{Content: c.Content, Embeds: c.Embeds, Components: components}, nil
}
