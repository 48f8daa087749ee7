// Package stream implements the resilient websocket notification client:
// connection state machine, reconnection supervisor and receive loop.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xivwolf/a-tour-ingame/internal/domain/registry"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
)

// Stats is a point-in-time view for status reporting.
type Stats struct {
	State          string    `json:"state"`
	Generation     uint64    `json:"generation"`
	Address        string    `json:"address"`
	ConnectedSince time.Time `json:"connected_since,omitzero"`
	LastError      string    `json:"last_error,omitempty"`
	Attempts       uint64    `json:"connect_attempts"`
	Connections    uint64    `json:"connections"`
	Frames         uint64    `json:"frames"`
	DecodeFailures uint64    `json:"decode_failures"`
	StaleDiscarded uint64    `json:"stale_discarded"`
	Subscribers    int       `json:"subscribers"`
	MailboxDrops   uint64    `json:"mailbox_drops"`
}

// Client is the facade over one supervised connection. Its methods never
// block on network I/O, except Shutdown which joins the supervisor.
type Client struct {
	dialer Dialer
	opts   options
	state  *StateMachine
	gen    generation
	hub    registry.Hubber

	counters    counters
	openedAt    atomic.Int64
	lastError   atomic.Value
	reconnectCh chan struct{}

	mu      sync.Mutex
	address string
	cancel  context.CancelFunc
	done    chan struct{} // closed when the latest supervisor exits
}

func New(dialer Dialer, opts ...Option) *Client {
	o := options{
		retryInterval:    DefaultRetryInterval,
		healthInterval:   DefaultHealthInterval,
		handshakeTimeout: DefaultHandshakeTimeout,
		identityParam:    DefaultIdentityParam,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New(nil)
	}
	if o.hub == nil {
		o.hub = registry.NewHub(registry.WithLogger(o.logger))
	}
	if o.pingTimeout == 0 {
		o.pingTimeout = o.healthInterval
	}
	o.logger = o.logger.With(slog.String("component", "stream"))

	c := &Client{
		dialer:      dialer,
		opts:        o,
		state:       NewStateMachine(),
		hub:         o.hub,
		reconnectCh: make(chan struct{}, 1),
	}
	c.lastError.Store("")
	c.state.OnChange(func(from, to State) {
		o.metrics.ConnectionState.Set(float64(to))
		o.logger.Debug("[STREAM] state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return c
}

// Connect sets the target address and starts the supervisor if it is not
// running. An address that is not a ws/wss URL is rejected synchronously.
func (c *Client) Connect(address string) error {
	if _, err := ValidateAddress(address); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.address = address
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev, done := c.done, make(chan struct{})
	c.cancel, c.done = cancel, done

	go c.supervise(ctx, prev, done)
	return nil
}

// Reconfigure changes the address used by the next connect attempt. The
// current connection, if any, is kept.
func (c *Client) Reconfigure(address string) error {
	if _, err := ValidateAddress(address); err != nil {
		return err
	}
	c.mu.Lock()
	changed := c.address != address
	c.address = address
	c.mu.Unlock()

	if changed {
		c.opts.logger.Info("[STREAM] target address updated", slog.String("address", address))
	}
	return nil
}

// Reconnect asks the supervisor to drop the current transport and dial again.
func (c *Client) Reconnect() {
	select {
	case c.reconnectCh <- struct{}{}:
	default:
	}
}

// Disconnect signals the supervisor to stop. It does not wait.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Shutdown disconnects and waits until the supervisor and its receive loop
// have exited. Calling it again, or on a client that never connected, is a no-op.
func (c *Client) Shutdown(ctx context.Context) error {
	c.Disconnect()

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers handler for every decoded message of every generation.
func (c *Client) Subscribe(handler registry.Handler) registry.Subscription {
	return c.hub.Subscribe(handler)
}

func (c *Client) OnStateChange(fn func(from, to State)) { c.state.OnChange(fn) }
func (c *Client) State() State                          { return c.state.Current() }
func (c *Client) Generation() uint64                   { return c.gen.current() }

func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *Client) Stats() Stats {
	s := Stats{
		State:          c.State().String(),
		Generation:     c.Generation(),
		Address:        c.Address(),
		LastError:      c.lastError.Load().(string),
		Attempts:       c.counters.attempts.Load(),
		Connections:    c.counters.connections.Load(),
		Frames:         c.counters.frames.Load(),
		DecodeFailures: c.counters.decodeFailures.Load(),
		StaleDiscarded: c.counters.staleDiscarded.Load(),
		Subscribers:    c.hub.Len(),
		MailboxDrops:   c.hub.Dropped(),
	}
	if ts := c.openedAt.Load(); ts != 0 && c.State() == Open {
		s.ConnectedSince = time.Unix(0, ts)
	}
	return s
}
