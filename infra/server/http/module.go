package httpsrv

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/handler/status"
	"github.com/xivwolf/a-tour-ingame/internal/stream"
	"go.uber.org/fx"
)

// Module starts the status server when status.listen is set.
var Module = fx.Module("http-server",
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, c *stream.Client, rules *model.RuleStore, g prometheus.Gatherer, logger *slog.Logger) {
		if cfg.Status.Listen == "" {
			return
		}
		srv := New(cfg.Status.Listen, status.NewStatusHandler(c, rules, g).Routes(), logger)
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return srv.Start() },
			OnStop:  func(ctx context.Context) error { return srv.Stop(ctx) },
		})
	}),
)
