package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

// Hubber defines the gateway for subscriptions and delivery fan-out.
type Hubber interface {
	Subscribe(handler Handler) Subscription
	Publish(d model.Delivery) int
	Len() int
	Dropped() uint64
	Shutdown()
}

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	ID() uuid.UUID
	Dropped() uint64
	Unsubscribe()
}

type hubConfig struct {
	mailboxSize int
	logger      *slog.Logger
	onDrop      func()
}

// Hub keeps one Cell per subscription.
type Hub struct {
	// cells stores Map[uuid.UUID]Celler. Optimized for [READ_HEAVY] workloads.
	cells  sync.Map
	config hubConfig

	closed  atomic.Bool
	dropped atomic.Uint64
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			mailboxSize: 256,
			logger:      slog.Default(),
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers handler. After Shutdown the returned subscription is inert.
func (h *Hub) Subscribe(handler Handler) Subscription {
	cell := NewCell(handler, h.config.mailboxSize, h.config.logger, h.recordDrop)
	if h.closed.Load() {
		cell.Stop()
		return &subscription{hub: h, cell: cell}
	}
	h.cells.Store(cell.ID(), cell)
	return &subscription{hub: h, cell: cell}
}

func (h *Hub) recordDrop() {
	h.dropped.Add(1)
	if h.config.onDrop != nil {
		h.config.onDrop()
	}
}

// Publish routes d to every cell and returns how many accepted it without
// evicting older work.
func (h *Hub) Publish(d model.Delivery) int {
	accepted := 0
	h.cells.Range(func(_, val any) bool {
		if cell, ok := val.(Celler); ok && cell.Push(d) {
			accepted++
		}
		return true
	})
	return accepted
}

func (h *Hub) Len() int {
	n := 0
	h.cells.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) unregister(id uuid.UUID) {
	if val, ok := h.cells.LoadAndDelete(id); ok {
		if cell, ok := val.(Celler); ok {
			cell.Stop()
		}
	}
}

// Shutdown stops every cell. Safe to call more than once.
func (h *Hub) Shutdown() {
	h.closed.Store(true)
	h.cells.Range(func(key, _ any) bool {
		h.unregister(key.(uuid.UUID))
		return true
	})
}

type subscription struct {
	hub  *Hub
	cell *Cell
}

func (s *subscription) ID() uuid.UUID   { return s.cell.ID() }
func (s *subscription) Dropped() uint64 { return s.cell.Dropped() }

// Unsubscribe is idempotent.
func (s *subscription) Unsubscribe() {
	s.hub.unregister(s.cell.ID())
	s.cell.Stop()
}
