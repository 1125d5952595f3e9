// Package help implements /help, a paginated list of every registered command.
package help

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/pagination"
)

// ModuleName is the help module name.
const ModuleName = "help"

const entriesPerPage = 8

// CommandLister returns the registered commands. *bot.Registry implements it.
type CommandLister interface {
	Commands() []*bot.CommandDescriptor
}

// Handler handles /help.
type Handler struct {
	commands CommandLister
	pages    *pagination.Registry
}

// NewHandler creates a new help handler.
func NewHandler(commands CommandLister, pages *pagination.Registry) *Handler {
	return &Handler{commands: commands, pages: pages}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// Commands returns the /help command.
func (h *Handler) Commands() []*bot.CommandDescriptor {
	return []*bot.CommandDescriptor{{
		Name:        "help",
		Description: "List the available commands",
		Deferred:    true,
		Ephemeral:   true,
		Handler:     h.handleHelp,
	}}
}

type entry struct {
	usage       string
	description string
	admin       bool
}

func (h *Handler) handleHelp(ctx context.Context, inv *bot.Invocation) error {
	entries := listEntries(h.commands.Commands())
	_, err := h.pages.Open(ctx, pagination.Options{
		Key:           inv.Interaction.ID,
		ApplicationID: inv.Interaction.AppID,
		Pages:         pagination.Chunk(entries, entriesPerPage),
		Renderer:      pagination.RendererFunc(renderPage),
		RestrictTo:    inv.UserID,
		Editor:        inv,
	})
	return err
}

// listEntries flattens commands into one entry per invocable path.
func listEntries(cmds []*bot.CommandDescriptor) []entry {
	var out []entry
	for _, d := range cmds {
		if len(d.Subcommands) == 0 {
			out = append(out, entry{usage: "/" + d.Name, description: d.Description, admin: d.Admin})
			continue
		}
		for _, name := range slices.Sorted(maps.Keys(d.Subcommands)) {
			sub := d.Subcommands[name]
			out = append(out, entry{
				usage:       "/" + d.Name + " " + name,
				description: sub.Description,
				admin:       d.Admin || sub.Admin,
			})
		}
	}
	if len(out) == 0 {
		out = append(out, entry{usage: "/help", description: "List the available commands"})
	}
	return out
}

func renderPage(index, total int, data any) (pagination.Content, error) {
	entries, ok := data.([]entry)
	if !ok {
		return pagination.Content{}, fmt.Errorf("help: unexpected page data %T", data)
	}
	var b strings.Builder
	for _, e := range entries {
		lock := ""
		if e.admin {
			lock = " 🔒"
		}
		fmt.Fprintf(&b, "`%s`%s\n%s\n", e.usage, lock, e.description)
	}
	return pagination.Content{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Commands",
			Description: b.String(),
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d · 🔒 admin only", index+1, total)},
		}},
	}, nil
}
