package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/service"
)

var _ service.Notifier = (*Breaker)(nil)

// Breaker stops calling a sink after consecutive failures and tries it
// again once the cooldown has passed. While open, Notify fails fast with
// gobreaker.ErrOpenState.
type Breaker struct {
	next service.Notifier
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next service.Notifier, failures uint32, cooldown time.Duration, logger *slog.Logger) *Breaker {
	if failures == 0 {
		failures = 5
	}
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        next.Name(),
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("[SINK] breaker state changed",
					slog.String("sink", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		}),
	}
}

func (b *Breaker) Name() string { return b.next.Name() }

func (b *Breaker) Notify(ctx context.Context, n model.Notification) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Notify(ctx, n)
	})
	return err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }
