package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/service"
)

// Metadata keys set on every published notification.
const (
	MetadataRules      = "rules"
	MetadataCategory   = "category"
	MetadataGeneration = "generation"
)

// Interface guard
var _ service.Notifier = (*Bus)(nil)

// Bus publishes matched notifications as JSON to a watermill topic so other
// processes can react to them.
type Bus struct {
	publisher message.Publisher
	topic     string
}

func NewBus(pub message.Publisher, topic string) *Bus {
	return &Bus{
		publisher: pub,
		topic:     topic,
	}
}

func (b *Bus) Name() string { return "bus" }

func (b *Bus) Notify(ctx context.Context, n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("bus: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataRules, strings.Join(n.Rules, ","))
	msg.Metadata.Set(MetadataCategory, n.Message.Category)
	msg.Metadata.Set(MetadataGeneration, fmt.Sprint(n.Generation))
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("bus: failed to publish to topic %s: %w", b.topic, err)
	}
	return nil
}
