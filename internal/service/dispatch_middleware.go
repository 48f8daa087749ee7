package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

// DispatchMiddleware implements [DECORATOR_PATTERN] to log every dispatch
// decision without touching the filtering logic.
type DispatchMiddleware struct {
	Next   Dispatcher
	Logger *slog.Logger
}

func NewDispatchMiddleware(next Dispatcher, logger *slog.Logger) Dispatcher {
	return &DispatchMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *DispatchMiddleware) Dispatch(ctx context.Context, d model.Delivery) (Decision, error) {
	start := time.Now()

	dec, err := m.Next.Dispatch(ctx, d)

	duration := time.Since(start)
	switch {
	case err != nil:
		m.Logger.Error("NOTIFICATION_DISPATCH_FAILED",
			"err", err,
			"rules", dec.Rules,
			"category", d.Message.Category,
			"duration_ms", duration.Milliseconds(),
		)
	case dec.Duplicate:
		m.Logger.Debug("NOTIFICATION_SUPPRESSED_DUPLICATE",
			"rules", dec.Rules,
			"timestamp", d.Message.Timestamp,
		)
	case dec.Notify:
		m.Logger.Info("NOTIFICATION_DISPATCHED",
			"rules", dec.Rules,
			"category", d.Message.Category,
			"author", d.Message.Author,
			"generation", d.Generation,
			"duration_ms", duration.Milliseconds(),
		)
	default:
		m.Logger.Debug("MESSAGE_FILTERED_OUT",
			"category", d.Message.Category,
			"roles", d.Message.RoleIDs(),
		)
	}

	return dec, err
}
