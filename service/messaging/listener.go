package messaging

import (
	"context"
	"errors"
	"log/slog"
)

// Handler processes one payload; an error nacks the message.
type Handler[T any] func(ctx context.Context, t *T) error

// Listen consumes queue until ctx is done, acking messages whose handler
// succeeds. It returns nil when ctx is cancelled.
func Listen[T any](ctx context.Context, queue Queue[T], handler Handler[T], logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		msg, err := queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msg == nil {
			continue
		}
		if err := handler(ctx, msg.T()); err != nil {
			logger.Warn("event handler failed", "error", err)
			if nackErr := msg.Nack(err); nackErr != nil {
				logger.Error("failed to nack message", "error", nackErr)
			}
			continue
		}
		if err := msg.Ack(); err != nil {
			logger.Error("failed to ack message", "error", err)
		}
	}
}
