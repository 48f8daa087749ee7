package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/domain/registry"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Notifier is an outbound sink for matched messages.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n model.Notification) error
}

// Source is anything deliveries can be subscribed from.
type Source interface {
	Subscribe(handler registry.Handler) registry.Subscription
}

// Decision is the outcome of dispatching one delivery.
type Decision struct {
	Notify    bool
	Rules     []string
	Duplicate bool
}

// [DISPATCH_SERVICE] FILTERS DELIVERIES AND FANS MATCHES OUT TO SINKS
type Dispatcher interface {
	Dispatch(ctx context.Context, d model.Delivery) (Decision, error)
}

type DispatchService struct {
	rules   *model.RuleStore
	sinks   []Notifier
	seen    *lru.Cache[string, struct{}]
	metrics *metrics.Metrics
}

// NewDispatchService builds the dispatcher. dedupeSize 0 disables duplicate
// suppression.
func NewDispatchService(rules *model.RuleStore, sinks []Notifier, dedupeSize int, m *metrics.Metrics) (*DispatchService, error) {
	s := &DispatchService{
		rules:   rules,
		sinks:   sinks,
		metrics: m,
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if dedupeSize > 0 {
		cache, err := lru.New[string, struct{}](dedupeSize)
		if err != nil {
			return nil, fmt.Errorf("dedupe cache: %w", err)
		}
		s.seen = cache
	}
	return s, nil
}

// Dispatch evaluates d once against the current rule snapshot and, on a
// match, notifies every sink. Sink errors are joined; one failing sink does
// not keep the others from running.
func (s *DispatchService) Dispatch(ctx context.Context, d model.Delivery) (Decision, error) {
	names, ok := Match(d.Message, s.rules.Snapshot())
	s.metrics.Evaluations.WithLabelValues(fmt.Sprint(ok)).Inc()
	if !ok {
		return Decision{}, nil
	}

	dec := Decision{Notify: true, Rules: names}
	if s.isDuplicate(d.Message) {
		s.metrics.Duplicates.Inc()
		dec.Duplicate = true
		return dec, nil
	}

	for _, name := range names {
		s.metrics.Notifications.WithLabelValues(name).Inc()
	}

	n := model.Notification{
		Message:    d.Message,
		Rules:      names,
		Generation: d.Generation,
		ReceivedAt: d.ReceivedAt,
	}

	// [CONCURRENCY] sinks are independent; wait for all of them
	var g errgroup.Group
	errs := make([]error, len(s.sinks))
	for i, sink := range s.sinks {
		g.Go(func() error {
			if err := sink.Notify(ctx, n); err != nil {
				s.metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return dec, errors.Join(errs...)
}

// isDuplicate records the message key and reports whether it was already seen.
// Messages without a timestamp have no stable identity and never match.
func (s *DispatchService) isDuplicate(msg model.InboundMessage) bool {
	if s.seen == nil || msg.Timestamp == "" {
		return false
	}
	key := strings.Join([]string{
		msg.ChannelID.String(),
		msg.AuthorID.String(),
		msg.Timestamp,
		msg.Content,
	}, "\x1f")
	found, _ := s.seen.ContainsOrAdd(key, struct{}{})
	return found
}

// Bind subscribes dispatcher to src. Each delivery is dispatched on the
// subscription's own goroutine, in receive order.
func Bind(ctx context.Context, src Source, dispatcher Dispatcher, logger *slog.Logger) registry.Subscription {
	return src.Subscribe(func(d model.Delivery) {
		if _, err := dispatcher.Dispatch(ctx, d); err != nil {
			logger.Warn("[DISPATCH] SINK_FAILED",
				slog.Any("err", err),
				slog.Uint64("generation", d.Generation),
			)
		}
	})
}
