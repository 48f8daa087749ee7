package model

// RoleMention is a role referenced by an inbound message.
// Filtering compares ID only; Name is a display label.
type RoleMention struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// [MESSAGE] DECODED UNIT OF THE NOTIFICATION STREAM
type InboundMessage struct {
	Content      string        `json:"content"`
	Author       string        `json:"author"`
	AuthorID     Identifier    `json:"author_id"`
	Timestamp    string        `json:"timestamp"`
	Attachments  []string      `json:"attachments"`
	Category     string        `json:"category"`
	ChannelName  string        `json:"channel_name"`
	ChannelID    Identifier    `json:"channel_id"`
	RoleMentions []RoleMention `json:"role_mentions"`
}

// HasRole reports whether the message mentions the role with the given ID.
func (m *InboundMessage) HasRole(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range m.RoleMentions {
		if r.ID == id {
			return true
		}
	}
	return false
}

// RoleIDs returns the mentioned role identifiers in mention order.
func (m *InboundMessage) RoleIDs() []string {
	ids := make([]string, 0, len(m.RoleMentions))
	for _, r := range m.RoleMentions {
		ids = append(ids, r.ID)
	}
	return ids
}

// NewRoleMentions builds a mention set: entries without an ID are skipped and
// repeated IDs keep their first occurrence.
func NewRoleMentions(in ...RoleMention) []RoleMention {
	out := make([]RoleMention, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
