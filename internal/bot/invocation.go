package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Invocation is a resolved slash command event.
type Invocation struct {
	exchange

	Interaction *discordgo.Interaction
	// Name is the top-level command name.
	Name string
	// SubName is the subcommand path ("" for plain commands, "group sub" for groups).
	SubName string
	// Options are the options of the matched leaf command.
	Options []*discordgo.ApplicationCommandInteractionDataOption
	GuildID string
	UserID  string
	Member  *discordgo.Member
}

func newInvocation(r Responder, i *discordgo.Interaction, name, sub string, opts []*discordgo.ApplicationCommandInteractionDataOption) *Invocation {
	return &Invocation{
		exchange:    exchange{responder: r, interaction: i},
		Interaction: i,
		Name:        name,
		SubName:     sub,
		Options:     opts,
		GuildID:     i.GuildID,
		UserID:      UserID(i),
		Member:      i.Member,
	}
}

// Path returns "name" or "name sub" for logs.
func (inv *Invocation) Path() string {
	if inv.SubName == "" {
		return inv.Name
	}
	return inv.Name + " " + inv.SubName
}

// Option returns the option with the given name, or nil.
func (inv *Invocation) Option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range inv.Options {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// String returns a string option value, or "" if absent.
// Also used for user, role and channel options, whose value is the snowflake ID.
func (inv *Invocation) String(name string) string {
	if o := inv.Option(name); o != nil {
		if s, ok := o.Value.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns an integer option value, or 0 if absent.
func (inv *Invocation) Int(name string) int64 {
	o := inv.Option(name)
	if o == nil {
		return 0
	}
	switch v := o.Value.(type) {
	case float64: // JSON numbers
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Bool returns a boolean option value, or false if absent.
func (inv *Invocation) Bool(name string) bool {
	if o := inv.Option(name); o != nil {
		b, _ := o.Value.(bool)
		return b
	}
	return false
}

// Role returns the role ID of a role option.
func (inv *Invocation) Role(name string) string {
	return inv.String(name)
}

// ComponentEvent is a message component interaction with its parsed custom ID.
type ComponentEvent struct {
	exchange

	Interaction *discordgo.Interaction
	ID          CustomID
	// Values holds the selected values of a select menu.
	Values  []string
	GuildID string
	UserID  string
	Member  *discordgo.Member
	// Message is the message the component is attached to.
	Message *discordgo.Message
}

// NewComponentEvent builds an event for i with an already parsed custom ID.
func NewComponentEvent(r Responder, i *discordgo.Interaction, id CustomID) *ComponentEvent {
	data := i.MessageComponentData()
	return &ComponentEvent{
		exchange:    exchange{responder: r, interaction: i},
		Interaction: i,
		ID:          id,
		Values:      data.Values,
		GuildID:     i.GuildID,
		UserID:      UserID(i),
		Member:      i.Member,
		Message:     i.Message,
	}
}

// Ack acknowledges without changing anything visible.
// No-op if already acknowledged.
func (ev *ComponentEvent) Ack(ctx context.Context) error {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if ev.acked {
		return nil
	}
	return ev.acknowledge(ctx, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
}

// Update replaces the message the component is attached to.
func (ev *ComponentEvent) Update(ctx context.Context, r *Reply) error {
	if r == nil {
		return errNilReply
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if ev.acked {
		return ev.editLocked(ctx, r.WebhookEdit())
	}
	return ev.acknowledge(ctx, r.response(discordgo.InteractionResponseUpdateMessage))
}
