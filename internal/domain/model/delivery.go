package model

import "time"

// Delivery is one decoded frame as handed to subscribers.
type Delivery struct {
	Message InboundMessage
	// Raw is the frame text exactly as received, kept for diagnostics.
	Raw        string
	Generation uint64
	ReceivedAt time.Time
}

// Notification is what sinks receive for a message that matched at least
// one enabled rule.
type Notification struct {
	Message    InboundMessage `json:"message"`
	Rules      []string       `json:"rules"`
	Generation uint64         `json:"generation"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Headline is the chat line for the notification: "[<category>]: <content>".
func (n Notification) Headline() string {
	return "[" + n.Message.Category + "]: " + n.Message.Content
}

// SoundSettings selects the alert sound. An empty File disables it;
// Volume is in [0,1].
type SoundSettings struct {
	File   string  `json:"file"`
	Dir    string  `json:"dir"`
	Volume float64 `json:"volume"`
}
