package logger

import (
	"context"
	"log/slog"

	"github.com/garyellow/guildbot-go/internal/ctxutil"
)

// ContextHandler is a slog.Handler decorator that copies interaction tracing
// values (guild, user, interaction and request IDs) from the context onto
// every record, so call sites only need the *Context logging variants.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds the context values that are present and forwards the record.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if guildID := ctxutil.GetGuildID(ctx); guildID != "" {
		r.AddAttrs(slog.String("guild_id", guildID))
	}
	if userID := ctxutil.GetUserID(ctx); userID != "" {
		r.AddAttrs(slog.String("user_id", userID))
	}
	if interactionID := ctxutil.GetInteractionID(ctx); interactionID != "" {
		r.AddAttrs(slog.String("interaction_id", interactionID))
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok && requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a ContextHandler wrapping the handler with attrs applied.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a ContextHandler wrapping the handler with the group applied.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
