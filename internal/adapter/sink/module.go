package sink

import (
	"log/slog"
	"os"

	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/service"
	"go.uber.org/fx"
)

// Module contributes the local sinks to the "sinks" group, each behind a breaker.
var Module = fx.Module("sink",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) (Player, error) {
			return NewPlayer(cfg.Sound.Command, logger)
		},
		func(lc fx.Lifecycle, cfg *config.Config, p Player, logger *slog.Logger) *Sound {
			s := NewSound(model.SoundSettings{
				File:   cfg.Sound.File,
				Dir:    cfg.Sound.Dir,
				Volume: cfg.Sound.Volume,
			}, cfg.Sound.MinInterval, p, logger.With(slog.String("component", "sound")))
			lc.Append(fx.Hook{OnStop: s.Close})
			return s
		},
		func(s *Sound) service.SoundConfigurer { return s },
		fx.Annotate(
			func(cfg *config.Config, s *Sound, logger *slog.Logger) service.Notifier {
				return NewBreaker(s, cfg.Breaker.Failures, cfg.Breaker.Cooldown, logger)
			},
			fx.ResultTags(`group:"sinks"`),
		),
		fx.Annotate(
			func(cfg *config.Config, logger *slog.Logger) []service.Notifier {
				if !cfg.Chat.Enabled {
					return nil
				}
				return []service.Notifier{
					NewBreaker(NewChatLog(os.Stdout), cfg.Breaker.Failures, cfg.Breaker.Cooldown, logger),
				}
			},
			fx.ResultTags(`group:"sinks,flatten"`),
		),
	),
)
