package registry

import "log/slog"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the [BACKPRESSURE] threshold: how many deliveries a
// subscriber may lag behind before the oldest are evicted.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}

// WithLogger sets the logger used for recovered handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.config.logger = l
		}
	}
}

// WithDropObserver registers a callback for every evicted delivery.
func WithDropObserver(fn func()) Option {
	return func(h *Hub) {
		h.config.onDrop = fn
	}
}
