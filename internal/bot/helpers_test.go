package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// spyResponder records every call made through the Responder boundary.
type spyResponder struct {
	mu        sync.Mutex
	acks      []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	followups []*discordgo.WebhookParams
	ackErr    error
}

func (s *spyResponder) Acknowledge(_ context.Context, _ *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ackErr != nil {
		return s.ackErr
	}
	s.acks = append(s.acks, resp)
	return nil
}

func (s *spyResponder) EditOriginal(_ context.Context, _ *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, edit)
	return &discordgo.Message{ID: "msg-1"}, nil
}

func (s *spyResponder) SendFollowup(_ context.Context, _ *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followups = append(s.followups, params)
	return &discordgo.Message{ID: "msg-2"}, nil
}

func (s *spyResponder) Acks() []*discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), s.acks...)
}

func (s *spyResponder) Edits() []*discordgo.WebhookEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.WebhookEdit(nil), s.edits...)
}

func (s *spyResponder) Followups() []*discordgo.WebhookParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*discordgo.WebhookParams(nil), s.followups...)
}

// stubPermissions answers IsAdmin with fixed values.
type stubPermissions struct {
	admin bool
	err   error
	calls int
}

func (s *stubPermissions) IsAdmin(context.Context, string, *discordgo.Member) (bool, error) {
	s.calls++
	return s.admin, s.err
}

var errLookup = errors.New("lookup failed")

func testMember(userID string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: userID}}
}

func commandInteraction(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "interaction-1",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "guild-1",
		Member:  testMember("user-1"),
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: opts,
		},
	}
}

func subcommandOption(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: opts,
	}
}

func componentInteraction(customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "interaction-2",
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "guild-1",
		Member:  testMember("user-1"),
		Message: &discordgo.Message{ID: "message-1"},
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      customID,
			ComponentType: discordgo.ButtonComponent,
		},
	}
}

func respContent(resp *discordgo.InteractionResponse) string {
	if resp == nil || resp.Data == nil {
		return ""
	}
	return resp.Data.Content
}

func isEphemeral(resp *discordgo.InteractionResponse) bool {
	return resp != nil && resp.Data != nil && resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0
}

func editContent(edit *discordgo.WebhookEdit) string {
	if edit == nil || edit.Content == nil {
		return ""
	}
	return *edit.Content
}
