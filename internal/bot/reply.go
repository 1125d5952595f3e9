package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Reply is the content of a response message.
type Reply struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	// Ephemeral only applies to the first response; Discord keeps the
	// visibility of the original message on later edits.
	Ephemeral bool
}

// Text returns a plain text reply.
func Text(content string) *Reply {
	return &Reply{Content: content}
}

// EphemeralText returns a plain text reply only the invoking user sees.
func EphemeralText(content string) *Reply {
	return &Reply{Content: content, Ephemeral: true}
}

func (r *Reply) flags() discordgo.MessageFlags {
	if r.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (r *Reply) response(typ discordgo.InteractionResponseType) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: typ,
		Data: &discordgo.InteractionResponseData{
			Content:    r.Content,
			Embeds:     r.Embeds,
			Components: r.Components,
			Flags:      r.flags(),
		},
	}
}

// WebhookEdit converts the reply into an edit of an existing message.
// Empty fields clear the corresponding part of the message.
func (r *Reply) WebhookEdit() *discordgo.WebhookEdit {
	content := r.Content
	embeds := r.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := r.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}
}

func (r *Reply) webhookParams() *discordgo.WebhookParams {
	return &discordgo.WebhookParams{
		Content:    r.Content,
		Embeds:     r.Embeds,
		Components: r.Components,
		Flags:      r.flags(),
	}
}

var errNilReply = errors.New("bot: nil reply")

// exchange tracks the response state of one interaction. Discord accepts
// exactly one initial response per interaction, so every response path goes
// through the same mutex-guarded flag.
type exchange struct {
	mu          sync.Mutex
	responder   Responder
	interaction *discordgo.Interaction
	acked       bool
	ackType     discordgo.InteractionResponseType
	// ephemeral makes a first response sent through Reply private even when
	// the reply itself does not ask for it.
	ephemeral bool
	// edited is set once the original response has been edited or a
	// followup was sent.
	edited bool
}

// Acknowledged reports whether the initial response has been sent.
func (e *exchange) Acknowledged() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acked
}

// Deferred reports whether the initial response was a deferred message.
func (e *exchange) Deferred() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acked && e.ackType == discordgo.InteractionResponseDeferredChannelMessageWithSource
}

// Reply sends r as the initial response, or edits the original response
// when the interaction was already acknowledged.
func (e *exchange) Reply(ctx context.Context, r *Reply) error {
	if r == nil {
		return errNilReply
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.acked {
		return e.editLocked(ctx, r.WebhookEdit())
	}
	resp := r.response(discordgo.InteractionResponseChannelMessageWithSource)
	if e.ephemeral {
		resp.Data.Flags |= discordgo.MessageFlagsEphemeral
	}
	return e.acknowledge(ctx, resp)
}

// Defer acknowledges with a "thinking" state. No-op if already acknowledged.
func (e *exchange) Defer(ctx context.Context, ephemeral bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.acked {
		return nil
	}
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return e.acknowledge(ctx, resp)
}

// Edit replaces the original response. The interaction must already be
// acknowledged; use Reply when that is not known.
func (e *exchange) Edit(ctx context.Context, r *Reply) error {
	if r == nil {
		return errNilReply
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editLocked(ctx, r.WebhookEdit())
}

func (e *exchange) editLocked(ctx context.Context, edit *discordgo.WebhookEdit) error {
	if _, err := e.responder.EditOriginal(ctx, e.interaction, edit); err != nil {
		return err
	}
	e.edited = true
	return nil
}

// pending reports whether a deferred message is still showing "thinking".
func (e *exchange) pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acked && e.ackType == discordgo.InteractionResponseDeferredChannelMessageWithSource && !e.edited
}

// Followup sends an additional message. Acknowledges first if needed.
func (e *exchange) Followup(ctx context.Context, r *Reply) error {
	if r == nil {
		return errNilReply
	}
	e.mu.Lock()
	if !e.acked {
		defer e.mu.Unlock()
		return e.acknowledge(ctx, r.response(discordgo.InteractionResponseChannelMessageWithSource))
	}
	e.mu.Unlock()

	if _, err := e.responder.SendFollowup(ctx, e.interaction, r.webhookParams()); err != nil {
		return err
	}
	e.mu.Lock()
	e.edited = true
	e.mu.Unlock()
	return nil
}

// acknowledge sends resp as the initial response. Must be called with mu held.
func (e *exchange) acknowledge(ctx context.Context, resp *discordgo.InteractionResponse) error {
	if err := e.responder.Acknowledge(ctx, e.interaction, resp); err != nil {
		return err
	}
	e.acked = true
	e.ackType = resp.Type
	return nil
}

// fail shows msg to the user as an ephemeral message.
func (e *exchange) fail(ctx context.Context, msg string) error {
	e.mu.Lock()
	if !e.acked {
		defer e.mu.Unlock()
		return e.acknowledge(ctx, EphemeralText(msg).response(discordgo.InteractionResponseChannelMessageWithSource))
	}
	defer e.mu.Unlock()

	if e.ackType == discordgo.InteractionResponseDeferredChannelMessageWithSource && !e.edited {
		// A deferred reply is still "thinking"; replace it.
		return e.editLocked(ctx, Text(msg).WebhookEdit())
	}
	_, err := e.responder.SendFollowup(ctx, e.interaction, EphemeralText(msg).webhookParams())
	return err
}
