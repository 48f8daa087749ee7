package cmd

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xivwolf/a-tour-ingame/config"
	httpsrv "github.com/xivwolf/a-tour-ingame/infra/server/http"
	"github.com/xivwolf/a-tour-ingame/internal/adapter/pubsub"
	"github.com/xivwolf/a-tour-ingame/internal/adapter/sink"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/domain/registry"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
	"github.com/xivwolf/a-tour-ingame/internal/service"
	"github.com/xivwolf/a-tour-ingame/internal/stream"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		Options(cfg),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}

// Options is the whole application graph.
func Options(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideRegistry,
			metrics.New,
			func(cfg *config.Config) *model.RuleStore { return model.NewRuleStore(cfg.Rules()...) },
		),
		// hooks stop in reverse: dispatcher first, then the stream, then the hub
		registry.Module,
		stream.Module,
		sink.Module,
		pubsub.Module,
		service.Module,
		httpsrv.Module,
	)
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With(slog.String("component", "watermill")))
}

// ProvideRegistry returns one registry for both registration and scraping.
func ProvideRegistry() (prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}
