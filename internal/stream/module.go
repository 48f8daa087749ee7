package stream

import (
	"context"
	"log/slog"

	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/adapter/identity"
	"github.com/xivwolf/a-tour-ingame/internal/domain/registry"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("stream",
	fx.Provide(
		func(cfg *config.Config) *identity.Static {
			return identity.NewStatic(cfg.Identity.Name)
		},
		fx.Annotate(
			func(cfg *config.Config) *WebsocketDialer {
				return NewWebsocketDialer(cfg.Stream.HandshakeTimeout, cfg.Stream.ReadLimit)
			},
			fx.As(new(Dialer)),
		),
		func(cfg *config.Config, d Dialer, id *identity.Static, hub registry.Hubber, logger *slog.Logger, m *metrics.Metrics) *Client {
			return New(d,
				WithRetryInterval(cfg.Stream.RetryInterval),
				WithHealthInterval(cfg.Stream.HealthInterval),
				WithHandshakeTimeout(cfg.Stream.HandshakeTimeout),
				WithIdentity(cfg.Stream.IdentityParam, id),
				WithHub(hub),
				WithLogger(logger),
				WithMetrics(m),
			)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, c *Client) {
		lc.Append(fx.Hook{
			// [CONFIG_ERROR] an invalid address fails startup synchronously
			OnStart: func(ctx context.Context) error {
				return c.Connect(cfg.Stream.Address)
			},
			OnStop: func(ctx context.Context) error {
				return c.Shutdown(ctx)
			},
		})
	}),
)
