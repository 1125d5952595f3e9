package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/metrics"
)

// Middleware wraps a command handler.
type Middleware func(next CommandHandler) CommandHandler

// PanicError is returned in place of a handler panic.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// LoggingMiddleware logs handler execution with timing and result info.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx context.Context, inv *Invocation) error {
			start := time.Now()

			log.WithField("command", inv.Path()).
				WithField("option_count", len(inv.Options)).
				DebugContext(ctx, "Handler started")

			err := next(ctx, inv)

			log.WithField("command", inv.Path()).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				WithField("acknowledged", inv.Acknowledged()).
				WithField("failed", err != nil).
				DebugContext(ctx, "Handler completed")

			return err
		}
	}
}

// MetricsMiddleware records per-command handler duration.
func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx context.Context, inv *Invocation) error {
			start := time.Now()
			err := next(ctx, inv)
			if m != nil {
				status := "success"
				if err != nil {
					status = "error"
				}
				m.RecordCommand(inv.Path(), status, time.Since(start).Seconds())
			}
			return err
		}
	}
}

// chain applies middlewares so that the first one is outermost.
func chain(h CommandHandler, middlewares ...Middleware) CommandHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// recoverCommand converts a panic in h into a *PanicError.
func recoverCommand(h CommandHandler) CommandHandler {
	return func(ctx context.Context, inv *Invocation) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: string(debug.Stack())}
			}
		}()
		return h(ctx, inv)
	}
}

// recoverComponent converts a panic in h into a *PanicError.
func recoverComponent(h ComponentHandler) ComponentHandler {
	return func(ctx context.Context, ev *ComponentEvent) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: string(debug.Stack())}
			}
		}()
		return h(ctx, ev)
	}
}
