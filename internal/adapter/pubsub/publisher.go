package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// QueueSuffix names the durable queue bound to the notification topic.
const QueueSuffix = "touralert"

// NewAMQPPublisher connects a durable topic publisher to the broker at uri.
func NewAMQPPublisher(uri string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(uri, amqp.GenerateQueueNameTopicNameWithSuffix(QueueSuffix))
	pub, err := amqp.NewPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	return pub, nil
}
