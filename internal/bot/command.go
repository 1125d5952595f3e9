package bot

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// CommandDescriptor declares a slash command and how it is dispatched.
type CommandDescriptor struct {
	Name        string
	Description string
	Options     []*discordgo.ApplicationCommandOption

	// Admin restricts the command to guild administrators.
	Admin bool
	// Deferred makes the router acknowledge before calling the handler.
	// Set it for handlers that regularly exceed the initial response deadline.
	Deferred bool
	// Ephemeral makes the first response, deferred or not, visible only to
	// the invoker.
	Ephemeral bool

	// Handler runs plain commands. Leave nil when Subcommands is set.
	Handler CommandHandler
	// Subcommands maps subcommand names ("sub" or "group sub") to handlers.
	Subcommands map[string]*Subcommand
}

// Subcommand is one leaf of a command with subcommands.
type Subcommand struct {
	Description string
	Options     []*discordgo.ApplicationCommandOption
	// Admin gates this subcommand even when the parent is open to everyone.
	Admin     bool
	Deferred  bool
	Ephemeral bool
	Handler   CommandHandler
}

// route is the resolved handler with its effective flags.
type route struct {
	handler   CommandHandler
	admin     bool
	deferred  bool
	ephemeral bool
}

// resolve returns the route for subName. ok is false when nothing handles it.
func (d *CommandDescriptor) resolve(subName string) (route, bool) {
	if subName == "" {
		if d.Handler == nil {
			return route{}, false
		}
		return route{handler: d.Handler, admin: d.Admin, deferred: d.Deferred, ephemeral: d.Ephemeral}, true
	}
	sub, ok := d.Subcommands[subName]
	if !ok || sub.Handler == nil {
		return route{}, false
	}
	return route{
		handler:   sub.Handler,
		admin:     d.Admin || sub.Admin,
		deferred:  d.Deferred || sub.Deferred,
		ephemeral: d.Ephemeral || sub.Ephemeral,
	}, true
}

func (d *CommandDescriptor) hasAdminRoute() bool {
	if d.Admin {
		return true
	}
	for _, sub := range d.Subcommands {
		if sub != nil && sub.Admin {
			return true
		}
	}
	return false
}

// validate checks the descriptor before registration.
func (d *CommandDescriptor) validate() error {
	if d.Name == "" {
		return errors.New("command name is required")
	}
	if d.Handler == nil && len(d.Subcommands) == 0 {
		return fmt.Errorf("command %q has no handler", d.Name)
	}
	if d.Handler != nil && len(d.Subcommands) > 0 {
		return fmt.Errorf("command %q has both a handler and subcommands", d.Name)
	}
	for name, sub := range d.Subcommands {
		if sub == nil || sub.Handler == nil {
			return fmt.Errorf("subcommand %q of %q has no handler", name, d.Name)
		}
		if n := len(strings.Fields(name)); n < 1 || n > 2 {
			return fmt.Errorf("subcommand name %q of %q must be \"sub\" or \"group sub\"", name, d.Name)
		}
	}
	return nil
}

// Definition returns the application command to register with Discord.
func (d *CommandDescriptor) Definition() *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Type:        discordgo.ChatApplicationCommand,
		Name:        d.Name,
		Description: d.Description,
		Options:     d.Options,
	}
	if len(d.Subcommands) == 0 {
		return cmd
	}

	groups := make(map[string]*discordgo.ApplicationCommandOption)
	var options []*discordgo.ApplicationCommandOption
	for _, name := range slices.Sorted(maps.Keys(d.Subcommands)) {
		sub := d.Subcommands[name]
		leaf := &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: sub.Description,
			Options:     sub.Options,
		}

		group, leafName, grouped := strings.Cut(name, " ")
		if !grouped {
			options = append(options, leaf)
			continue
		}
		leaf.Name = leafName
		g, ok := groups[group]
		if !ok {
			g = &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        group,
				Description: group,
			}
			groups[group] = g
			options = append(options, g)
		}
		g.Options = append(g.Options, leaf)
	}
	cmd.Options = options
	return cmd
}

// commandPath extracts the subcommand path and leaf options from command data.
func commandPath(data discordgo.ApplicationCommandInteractionData) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(data.Options) == 0 {
		return "", nil
	}
	first := data.Options[0]
	switch first.Type {
	case discordgo.ApplicationCommandOptionSubCommand:
		return first.Name, first.Options
	case discordgo.ApplicationCommandOptionSubCommandGroup:
		if len(first.Options) == 0 {
			return first.Name, nil
		}
		leaf := first.Options[0]
		return first.Name + " " + leaf.Name, leaf.Options
	default:
		return "", data.Options
	}
}
