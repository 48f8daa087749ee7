package registry

import (
	"context"
	"log/slog"

	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Hub {
			return NewHub(
				WithMailboxSize(cfg.Subscribers.MailboxSize),
				WithLogger(logger),
				WithDropObserver(m.MailboxDrops.Inc),
			)
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Stop all subscriber goroutines
				return nil
			},
		})
	}),
)
