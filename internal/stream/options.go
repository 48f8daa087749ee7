package stream

import (
	"log/slog"
	"time"

	"github.com/xivwolf/a-tour-ingame/internal/domain/registry"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
)

const (
	DefaultRetryInterval    = 5 * time.Second
	DefaultHealthInterval   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultIdentityParam    = "player"
)

// IdentityProvider yields the local display name once it is known.
type IdentityProvider interface {
	Identity() (name string, ok bool)
}

type options struct {
	retryInterval    time.Duration
	healthInterval   time.Duration
	handshakeTimeout time.Duration
	pingTimeout      time.Duration
	identityParam    string
	identity         IdentityProvider
	logger           *slog.Logger
	metrics          *metrics.Metrics
	hub              registry.Hubber
}

// Option defines a functional configuration type for the Client.
type Option func(*options)

// WithRetryInterval sets the fixed wait between failed handshakes.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithHealthInterval sets how often an open connection is pinged.
func WithHealthInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.healthInterval = d
		}
	}
}

// WithHandshakeTimeout bounds a single connect attempt.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.handshakeTimeout = d
		}
	}
}

// WithPingTimeout bounds the write of a health-check ping.
func WithPingTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingTimeout = d
		}
	}
}

// WithIdentity adds ?param=<name> to the connect URI whenever p knows the name.
func WithIdentity(param string, p IdentityProvider) Option {
	return func(o *options) {
		if param != "" {
			o.identityParam = param
		}
		o.identity = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithHub publishes deliveries into an externally owned hub.
func WithHub(h registry.Hubber) Option {
	return func(o *options) {
		if h != nil {
			o.hub = h
		}
	}
}
