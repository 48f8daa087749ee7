package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

// session is the supervisor-owned view of one established connection.
type session struct {
	id       string
	conn     Conn
	token    uint64
	openedAt time.Time
	done     chan error
	exited   bool
	logger   *slog.Logger
}

// supervise is the single sequential loop that owns state, transport and
// generation. prev is the done channel of an earlier supervisor that may
// still be unwinding.
func (c *Client) supervise(ctx context.Context, prev <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
	}

	c.opts.logger.Info("[STREAM] supervisor started", slog.String("address", c.Address()))
	defer c.opts.logger.Info("[STREAM] supervisor stopped")

	var s *session
	defer func() {
		if s != nil {
			c.teardown(s, context.Canceled)
		}
	}()

	for ctx.Err() == nil {
		if s == nil {
			var err error
			if s, err = c.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.recordError(err)
				c.opts.logger.Warn("[STREAM] connect failed, retrying",
					slog.Any("err", err),
					slog.Duration("retry_in", c.opts.retryInterval),
				)
				if !c.pause(ctx, c.opts.retryInterval) {
					return
				}
				continue
			}
		}

		cause := c.watch(ctx, s)
		if ctx.Err() != nil {
			return
		}

		uptime := c.teardown(s, cause)
		s = nil

		// [HOT_LOOP_GUARD] a connection that dies right away waits one interval
		if uptime < c.opts.retryInterval && !errors.Is(cause, ErrReconnectRequested) {
			if !c.pause(ctx, c.opts.retryInterval-uptime) {
				return
			}
		}
	}
}

// connect performs one handshake attempt: Disconnected -> Connecting -> Open|Disconnected.
func (c *Client) connect(ctx context.Context) (*session, error) {
	// this attempt already serves any earlier reconnect request; one raised
	// while dialing stays queued and ends the session right after Open
	select {
	case <-c.reconnectCh:
	default:
	}

	if !c.state.Transition(Disconnected, Connecting) {
		return nil, fmt.Errorf("connect from state %s", c.state.Current())
	}
	c.counters.attempts.Add(1)
	c.opts.metrics.ConnectAttempts.Inc()

	target, err := c.targetURL()
	if err != nil {
		c.state.Transition(Connecting, Disconnected)
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, c.opts.handshakeTimeout)
	conn, err := c.dialer.Dial(dctx, target)
	cancel()
	if err != nil {
		c.state.Transition(Connecting, Disconnected)
		return nil, fmt.Errorf("dial %s: %w", redact(target), err)
	}

	token := c.gen.next()
	s := &session{
		id:       uuid.NewString(),
		conn:     conn,
		token:    token,
		openedAt: time.Now(),
		done:     make(chan error, 1),
	}
	s.logger = c.opts.logger.With(
		slog.String("session_id", s.id),
		slog.Uint64("generation", token),
	)

	c.openedAt.Store(s.openedAt.UnixNano())
	c.counters.connections.Add(1)
	c.opts.metrics.Connections.Inc()
	c.opts.metrics.Generation.Set(float64(token))
	c.state.Transition(Connecting, Open)

	rc := &receiver{
		conn:     conn,
		token:    token,
		gen:      &c.gen,
		publish:  func(d model.Delivery) { c.hub.Publish(d) },
		logger:   s.logger,
		metrics:  c.opts.metrics,
		counters: &c.counters,
	}
	go func() { s.done <- rc.run() }()

	s.logger.Info("[STREAM] connection established", slog.String("url", redact(target)))
	return s, nil
}

// watch blocks while the session is open and returns why it should end.
func (c *Client) watch(ctx context.Context, s *session) error {
	ticker := time.NewTicker(c.opts.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.done:
			s.exited = true
			return err
		case <-c.reconnectCh:
			return ErrReconnectRequested
		case <-ticker.C:
			if c.state.Current() != Open {
				return fmt.Errorf("%w: state %s", ErrHealthCheck, c.state.Current())
			}
			if err := s.conn.Ping(time.Now().Add(c.opts.pingTimeout)); err != nil {
				return fmt.Errorf("%w: %v", ErrHealthCheck, err)
			}
		}
	}
}

// teardown runs Open -> Closing -> Disconnected for s and joins its receive loop.
func (c *Client) teardown(s *session, cause error) time.Duration {
	c.state.Transition(Open, Closing)
	c.gen.retire()

	if err := s.conn.Close(); err != nil {
		s.logger.Debug("[STREAM] transport close", slog.Any("err", err))
	}
	if !s.exited {
		<-s.done
		s.exited = true
	}
	c.state.Transition(Closing, Disconnected)

	uptime := time.Since(s.openedAt)
	attrs := []any{slog.Any("cause", cause), slog.Duration("uptime", uptime)}
	switch {
	case errors.Is(cause, context.Canceled):
		s.logger.Info("[STREAM] connection closed on shutdown", attrs...)
	case isGraceful(cause):
		s.logger.Info("[STREAM] connection closed", attrs...)
	default:
		c.recordError(cause)
		s.logger.Warn("[STREAM] connection lost", attrs...)
	}
	return uptime
}

func (c *Client) targetURL() (string, error) {
	var name string
	if c.opts.identity != nil {
		if n, ok := c.opts.identity.Identity(); ok {
			name = n
		}
	}
	return BuildURL(c.Address(), c.opts.identityParam, name)
}

func (c *Client) recordError(err error) {
	if err != nil {
		c.lastError.Store(err.Error())
	}
}

// pause waits d, or less when a reconnect is requested. It reports false
// once ctx is done.
func (c *Client) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.reconnectCh:
		return true
	case <-t.C:
		return true
	}
}

// redact drops the query string, which may carry the local identity.
func redact(raw string) string {
	base, _, _ := strings.Cut(raw, "?")
	return base
}
