package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/xivwolf/a-tour-ingame/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// NewLogger builds the process logger from log.level and log.format.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "otel":
		// exports through the global OpenTelemetry logger provider
		h = otelslog.NewHandler(ServiceName, otelslog.WithVersion(version))
	default:
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(
		slog.String("service", ServiceName),
		slog.String("namespace", ServiceNamespace),
	), nil
}

func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
