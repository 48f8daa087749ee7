// Package sink implements the local notification outputs: the chat log line,
// the alert sound and the circuit breaker that guards every sink.
package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/service"
)

// Interface guard
var _ service.Notifier = (*ChatLog)(nil)

// ChatLog prints one "[<category>]: <content>" line per notification.
type ChatLog struct {
	mu sync.Mutex
	w  io.Writer
}

func NewChatLog(w io.Writer) *ChatLog {
	return &ChatLog{w: w}
}

func (c *ChatLog) Name() string { return "chat" }

func (c *ChatLog) Notify(_ context.Context, n model.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, n.Headline()); err != nil {
		return fmt.Errorf("write chat line: %w", err)
	}
	return nil
}
