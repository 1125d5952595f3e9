// Package bot routes Discord interactions to command and component handlers.
//
// Modules implement Module and describe their slash commands with
// CommandDescriptor. The CommandRouter resolves a command invocation to its
// handler, enforces admin gating and acknowledges within Discord's deadline.
// The ComponentRouter parses component custom IDs and forwards them to the
// owning module, or to the pagination registry for navigation buttons.
package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// CommandHandler handles a resolved command invocation.
// A returned error is logged and shown to the user as a generic failure,
// or as the user message carried by an errors.WrappedError.
type CommandHandler func(ctx context.Context, inv *Invocation) error

// ComponentHandler handles a component event routed by its custom ID kind.
type ComponentHandler func(ctx context.Context, ev *ComponentEvent) error

// NavigationHandler receives component events with the reserved pagination kind.
type NavigationHandler interface {
	HandleNavigation(ctx context.Context, ev *ComponentEvent) error
}

// Module is a feature area owning a set of commands and, optionally,
// a component kind.
type Module interface {
	// Name identifies the module in logs.
	Name() string

	// Commands returns the slash commands this module registers.
	Commands() []*CommandDescriptor
}

// ComponentModule is a Module that also owns message components whose
// custom ID kind equals ComponentKind.
type ComponentModule interface {
	Module
	ComponentKind() string
	HandleComponent(ctx context.Context, ev *ComponentEvent) error
}

// Responder is the REST boundary used to answer interactions.
type Responder interface {
	// Acknowledge sends the initial interaction response.
	Acknowledge(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error

	// EditOriginal edits the original response of an acknowledged interaction.
	EditOriginal(ctx context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error)

	// SendFollowup sends an additional message for an acknowledged interaction.
	SendFollowup(ctx context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error)
}
