package stream

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
	"github.com/xivwolf/a-tour-ingame/internal/service/dto"
)

type counters struct {
	attempts       atomic.Uint64
	connections    atomic.Uint64
	frames         atomic.Uint64
	decodeFailures atomic.Uint64
	staleDiscarded atomic.Uint64
}

// receiver is the read loop of exactly one Conn and one generation token.
type receiver struct {
	conn    Conn
	token   uint64
	gen     *generation
	publish func(model.Delivery)

	logger   *slog.Logger
	metrics  *metrics.Metrics
	counters *counters
}

// run blocks until the transport fails, the peer closes, or the token is
// superseded. It always returns a non-nil cause.
func (r *receiver) run() error {
	for {
		frameType, data, err := r.conn.ReadMessage()
		if err != nil {
			return err
		}

		if frameType != TextFrame {
			r.metrics.FramesReceived.WithLabelValues("binary").Inc()
			r.logger.Debug("[STREAM] non-text frame ignored", slog.Int("size", len(data)))
			continue
		}
		r.metrics.FramesReceived.WithLabelValues("text").Inc()
		r.counters.frames.Add(1)

		msg, err := dto.DecodeMessage(data)
		if err != nil {
			// [POISON_PILL] a bad frame never terminates the stream
			r.metrics.DecodeFailures.Inc()
			r.counters.decodeFailures.Add(1)
			r.logger.Warn("[STREAM] DECODE_FAILED",
				slog.Any("err", err),
				slog.Int("size", len(data)),
			)
			if !r.gen.isLive(r.token) {
				return r.superseded()
			}
			continue
		}

		d := model.Delivery{
			Message:    msg,
			Raw:        string(data),
			Generation: r.token,
			ReceivedAt: time.Now(),
		}
		if !r.gen.deliverIf(r.token, func() { r.publish(d) }) {
			return r.superseded()
		}
	}
}

func (r *receiver) superseded() error {
	r.metrics.StaleDiscarded.Inc()
	r.counters.staleDiscarded.Add(1)
	r.logger.Debug("[STREAM] late frame discarded", slog.Uint64("generation", r.token))
	return ErrSuperseded
}

// isGraceful reports whether cause is an orderly end of a receive loop.
func isGraceful(cause error) bool {
	return errors.Is(cause, ErrPeerClosed) ||
		errors.Is(cause, ErrSuperseded) ||
		errors.Is(cause, ErrReconnectRequested)
}
