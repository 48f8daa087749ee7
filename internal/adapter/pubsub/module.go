package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/adapter/sink"
	"github.com/xivwolf/a-tour-ingame/internal/service"
	"go.uber.org/fx"
)

// Module adds the bus sink when a broker is configured.
var Module = fx.Module("pubsub",
	fx.Provide(
		fx.Annotate(
			func(lc fx.Lifecycle, cfg *config.Config, wl watermill.LoggerAdapter, logger *slog.Logger) ([]service.Notifier, error) {
				if cfg.Bus.AMQPURI == "" {
					return nil, nil
				}
				pub, err := NewAMQPPublisher(cfg.Bus.AMQPURI, wl)
				if err != nil {
					return nil, err
				}
				lc.Append(closeHook(pub))

				bus := NewBus(pub, cfg.Bus.Topic)
				return []service.Notifier{
					sink.NewBreaker(bus, cfg.Breaker.Failures, cfg.Breaker.Cooldown, logger),
				}, nil
			},
			fx.ResultTags(`group:"sinks,flatten"`),
		),
	),
)

func closeHook(pub message.Publisher) fx.Hook {
	return fx.Hook{
		OnStop: func(context.Context) error { return pub.Close() },
	}
}
