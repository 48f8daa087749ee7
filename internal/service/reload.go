package service

import (
	"log/slog"

	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

// SoundConfigurer accepts new sound settings at runtime.
type SoundConfigurer interface {
	Configure(s model.SoundSettings)
}

// Reconfigurer retargets the stream for its next connect attempt.
type Reconfigurer interface {
	Reconfigure(address string) error
}

// IdentitySetter updates the local display name.
type IdentitySetter interface {
	Set(name string)
}

// Reloader applies a changed configuration to the running components.
type Reloader struct {
	rules    *model.RuleStore
	sound    SoundConfigurer
	stream   Reconfigurer
	identity IdentitySetter
	logger   *slog.Logger
}

func NewReloader(rules *model.RuleStore, sound SoundConfigurer, stream Reconfigurer, identity IdentitySetter, logger *slog.Logger) *Reloader {
	return &Reloader{
		rules:    rules,
		sound:    sound,
		stream:   stream,
		identity: identity,
		logger:   logger,
	}
}

// Apply swaps the rule set and sound settings immediately. Address and
// identity changes take effect on the next connect; an invalid address is
// logged and the previous one kept.
func (r *Reloader) Apply(cfg *config.Config) {
	r.rules.Replace(cfg.Rules()...)

	if r.sound != nil {
		r.sound.Configure(model.SoundSettings{
			File:   cfg.Sound.File,
			Dir:    cfg.Sound.Dir,
			Volume: cfg.Sound.Volume,
		})
	}
	if r.identity != nil {
		r.identity.Set(cfg.Identity.Name)
	}
	if r.stream != nil {
		if err := r.stream.Reconfigure(cfg.Stream.Address); err != nil {
			r.logger.Warn("[CONFIG] address change rejected", slog.Any("err", err))
		}
	}

	r.logger.Info("[CONFIG] settings applied",
		slog.Int("rules", len(cfg.Filters)),
		slog.String("sound", cfg.Sound.File),
	)
}
