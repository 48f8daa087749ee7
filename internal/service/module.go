package service

import (
	"context"
	"log/slog"

	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/adapter/identity"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
	"github.com/xivwolf/a-tour-ingame/internal/stream"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			func(rules *model.RuleStore, sinks []Notifier, cfg *config.Config, m *metrics.Metrics) (*DispatchService, error) {
				return NewDispatchService(rules, sinks, cfg.Dedupe.Size, m)
			},
			fx.ParamTags(``, `group:"sinks"`),
			fx.As(new(Dispatcher)),
		),
		func(rules *model.RuleStore, sound SoundConfigurer, c *stream.Client, id *identity.Static, logger *slog.Logger) *Reloader {
			return NewReloader(rules, sound, c, id, logger)
		},
	),

	// [DECORATION_LAYER] Intercept Dispatcher to add decision logging
	fx.Decorate(func(orig Dispatcher, logger *slog.Logger) Dispatcher {
		return NewDispatchMiddleware(orig, logger.With(slog.String("component", "dispatch")))
	}),

	// subscribe before the stream starts so no early delivery is missed
	fx.Invoke(func(lc fx.Lifecycle, c *stream.Client, d Dispatcher, logger *slog.Logger) {
		ctx, cancel := context.WithCancel(context.Background())
		sub := Bind(ctx, c, d, logger)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				cancel()
				sub.Unsubscribe()
				return nil
			},
		})
	}),

	fx.Invoke(func(cfg *config.Config, r *Reloader, logger *slog.Logger) {
		cfg.Watch(logger, r.Apply)
	}),
)
