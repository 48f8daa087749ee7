/*
Package registry fans decoded stream deliveries out to subscribers.

Key Architectural Concepts:
  - Cells: every subscription is an isolated 'Cell' (Actor) with its own
    mailbox and goroutine, so a slow handler only delays itself.
  - Ordering: a cell drains its mailbox sequentially; each handler observes
    deliveries in wire order.
  - Backpressure: mailboxes are bounded. When one is full the oldest pending
    delivery is evicted to make room (drop-oldest), never the newest.
  - Lifecycle: cells are joined on Stop, no goroutine outlives the Hub.
*/
package registry

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

// Handler consumes deliveries for one subscription.
type Handler func(model.Delivery)

// Celler defines the internal API for subscriber delivery units.
type Celler interface {
	ID() uuid.UUID
	Push(d model.Delivery) bool
	Dropped() uint64
	Stop()
}

// Cell implements [ISOLATED_DELIVERY] for a single subscription.
type Cell struct {
	id      uuid.UUID
	handler Handler
	logger  *slog.Logger

	// [MAILBOX]
	// Decouples the receive loop from handler latency.
	mailbox chan model.Delivery

	// pushMu serializes producers so that evict-then-enqueue is one step.
	pushMu  sync.Mutex
	dropped atomic.Uint64
	onDrop  func()

	// [LIFECYCLE_CONTROL]
	doneCh   chan struct{}
	exitedCh chan struct{}
	stopOnce sync.Once
}

func NewCell(handler Handler, bufferSize int, logger *slog.Logger, onDrop func()) *Cell {
	if bufferSize < 1 {
		bufferSize = 1
	}
	c := &Cell{
		id:       uuid.New(),
		handler:  handler,
		logger:   logger,
		mailbox:  make(chan model.Delivery, bufferSize),
		onDrop:   onDrop,
		doneCh:   make(chan struct{}),
		exitedCh: make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Cell) ID() uuid.UUID   { return c.id }
func (c *Cell) Dropped() uint64 { return c.dropped.Load() }

// Push enqueues d. It returns false when an older delivery had to be
// evicted to make room, or when the cell is stopped.
func (c *Cell) Push(d model.Delivery) bool {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	select {
	case <-c.doneCh:
		return false
	default:
	}

	for evicted := false; ; {
		select {
		case c.mailbox <- d:
			return !evicted
		default:
		}

		// [DROP_OLDEST] the consumer may drain concurrently, so a failed
		// eviction just means there is room now.
		select {
		case <-c.mailbox:
			evicted = true
			c.dropped.Add(1)
			if c.onDrop != nil {
				c.onDrop()
			}
		default:
		}
	}
}

func (c *Cell) loop() {
	defer close(c.exitedCh)
	for {
		select {
		case <-c.doneCh:
			return
		case d := <-c.mailbox:
			c.deliver(d)
		}
	}
}

func (c *Cell) deliver(d model.Delivery) {
	// [PANIC_RECOVERY] a faulty handler must not kill the subscription
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("[HUB] subscriber panic recovered",
				slog.String("cell_id", c.id.String()),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	c.handler(d)
}

// Stop terminates the cell and waits for an in-flight handler call to return.
func (c *Cell) Stop() {
	c.stopOnce.Do(func() {
		c.pushMu.Lock()
		close(c.doneCh)
		c.pushMu.Unlock()
	})
	<-c.exitedCh
}
