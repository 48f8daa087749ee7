// internal/service/dto/message.go
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

// ErrMalformedPayload marks a frame that is not a JSON object of the message shape.
var ErrMalformedPayload = errors.New("malformed message payload")

// IdentifierDTO accepts any JSON scalar. Producers are inconsistent about
// emitting author/channel IDs as numbers or strings.
type IdentifierDTO struct {
	model.Identifier
}

func (d *IdentifierDTO) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		d.Identifier = model.Identifier{}
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d.Identifier = model.StringID(s)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		d.Identifier = model.StringID(fmt.Sprint(v))
	case '{', '[':
		return fmt.Errorf("identifier must be a scalar, got %q", b[:1])
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		d.Identifier = model.NumberID(n.String())
	}
	return nil
}

type RoleMentionDTO struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

// MessageDTO mirrors the wire payload. Unknown keys are ignored.
type MessageDTO struct {
	Content      string            `json:"content"`
	Author       string            `json:"author"`
	AuthorID     IdentifierDTO     `json:"author_id"`
	Timestamp    string            `json:"timestamp"`
	Attachments  []string          `json:"attachments"`
	Category     string            `json:"category"`
	ChannelName  string            `json:"channel_name"`
	ChannelID    IdentifierDTO     `json:"channel_id"`
	RoleMentions []json.RawMessage `json:"role_mentions"`
}

func (d *MessageDTO) ToDomain() model.InboundMessage {
	attachments := make([]string, 0, len(d.Attachments))
	attachments = append(attachments, d.Attachments...)

	return model.InboundMessage{
		Content:      d.Content,
		Author:       d.Author,
		AuthorID:     d.AuthorID.Identifier,
		Timestamp:    d.Timestamp,
		Attachments:  attachments,
		Category:     d.Category,
		ChannelName:  d.ChannelName,
		ChannelID:    d.ChannelID.Identifier,
		RoleMentions: d.mapMentions(),
	}
}

// mapMentions decodes entries one by one; an entry that is not an object or
// has no usable string id is dropped without failing the message.
func (d *MessageDTO) mapMentions() []model.RoleMention {
	res := make([]model.RoleMention, 0, len(d.RoleMentions))
	for _, raw := range d.RoleMentions {
		var m RoleMentionDTO
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.ID == nil || *m.ID == "" {
			continue
		}
		res = append(res, model.RoleMention{ID: *m.ID, Name: m.Name})
	}
	return model.NewRoleMentions(res...)
}

// DecodeMessage turns one text frame into an InboundMessage.
func DecodeMessage(raw []byte) (model.InboundMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return model.InboundMessage{}, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}

	var d MessageDTO
	if err := json.Unmarshal(trimmed, &d); err != nil {
		return model.InboundMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return d.ToDomain(), nil
}
