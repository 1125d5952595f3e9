// Package bottest provides fakes and interaction builders for tests of code
// built on package bot.
package bottest

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/garyellow/guildbot-go/internal/bot"
	"github.com/garyellow/guildbot-go/internal/pagination"
	"github.com/stretchr/testify/require"
)

// SpyResponder records every call made through the bot.Responder boundary.
type SpyResponder struct {
	mu        sync.Mutex
	acks      []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	followups []*discordgo.WebhookParams
}

var _ bot.Responder = (*SpyResponder)(nil)

func (s *SpyResponder) Acknowledge(_ context.Context, _ *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks = append(s.acks, resp)
	return nil
}

func (s *SpyResponder) EditOriginal(_ context.Context, _ *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, edit)
	return &discordgo.Message{ID: "msg-1"}, nil
}

func (s *SpyResponder) SendFollowup(_ context.Context, _ *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followups = append(s.followups, params)
	return &discordgo.Message{ID: "msg-2"}, nil
}

// Acks returns the initial responses sent so far.
func (s *SpyResponder) Acks() []*discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.acks)
}

// Edits returns the original-response edits sent so far.
func (s *SpyResponder) Edits() []*discordgo.WebhookEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.edits)
}

// Followups returns the followup messages sent so far.
func (s *SpyResponder) Followups() []*discordgo.WebhookParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.followups)
}

// LastEdit returns the most recent edit, failing the test if there is none.
func (s *SpyResponder) LastEdit(t testing.TB) *discordgo.WebhookEdit {
	t.Helper()
	edits := s.Edits()
	require.NotEmpty(t, edits, "no edits recorded")
	return edits[len(edits)-1]
}

// Harness wires routers and a pagination registry around a SpyResponder.
type Harness struct {
	Responder  *SpyResponder
	Commands   *bot.CommandRouter
	Components *bot.ComponentRouter
	Modules    *bot.Registry
	Pages      *pagination.Registry
}

// NewHarness builds a Harness. perms may be nil when no admin route is registered.
func NewHarness(t testing.TB, perms bot.PermissionChecker) *Harness {
	t.Helper()
	spy := &SpyResponder{}
	pages := pagination.NewRegistry(pagination.Config{})
	commands := bot.NewCommandRouter(bot.CommandRouterConfig{Responder: spy, Permissions: perms})
	components := bot.NewComponentRouter(bot.ComponentRouterConfig{Responder: spy, Navigation: pages})
	return &Harness{
		Responder:  spy,
		Commands:   commands,
		Components: components,
		Modules:    bot.NewRegistry(commands, components),
		Pages:      pages,
	}
}

// StaticPermissions answers IsAdmin with a fixed value.
type StaticPermissions bool

func (p StaticPermissions) IsAdmin(context.Context, string, *discordgo.Member) (bool, error) {
	return bool(p), nil
}

// Member returns a guild member with the given user ID.
func Member(userID string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user-" + userID}}
}

// Command builds an application command interaction from userID in guild-1.
func Command(id, userID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      id,
		AppID:   "app-1",
		Token:   "token-" + id,
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "guild-1",
		Member:  Member(userID),
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: opts,
		},
	}
}

// Sub builds a subcommand option.
func Sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: opts,
	}
}

// StringOpt builds a string option.
func StringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

// IntOpt builds an integer option the way it arrives from JSON.
func IntOpt(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value)}
}

// RoleOpt builds a role option.
func RoleOpt(name, roleID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionRole, Value: roleID}
}

// Button builds a button interaction from userID.
func Button(id, userID, customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      id,
		AppID:   "app-1",
		Token:   "token-" + id,
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "guild-1",
		Member:  Member(userID),
		Message: &discordgo.Message{ID: "message-1"},
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      customID,
			ComponentType: discordgo.ButtonComponent,
		},
	}
}

// Select builds a string select interaction from userID.
func Select(id, userID, customID string, values ...string) *discordgo.Interaction {
	i := Button(id, userID, customID)
	i.Data = discordgo.MessageComponentInteractionData{
		CustomID:      customID,
		ComponentType: discordgo.SelectMenuComponent,
		Values:        values,
	}
	return i
}

// EditContent dereferences an edit's content.
func EditContent(edit *discordgo.WebhookEdit) string {
	if edit == nil || edit.Content == nil {
		return ""
	}
	return *edit.Content
}

// EditEmbeds dereferences an edit's embeds.
func EditEmbeds(edit *discordgo.WebhookEdit) []*discordgo.MessageEmbed {
	if edit == nil || edit.Embeds == nil {
		return nil
	}
	return *edit.Embeds
}

// EditComponents dereferences an edit's components.
func EditComponents(edit *discordgo.WebhookEdit) []discordgo.MessageComponent {
	if edit == nil || edit.Components == nil {
		return nil
	}
	return *edit.Components
}

// IsEphemeral reports whether resp is only visible to the invoker.
func IsEphemeral(resp *discordgo.InteractionResponse) bool {
	return resp != nil && resp.Data != nil && resp.Data.Flags&discordgo.MessageFlagsEphemeral != 0
}
