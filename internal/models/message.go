package models

import "time"

// Message types understood by the client. Unknown types pass through untouched.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message represents a chat message.
type Message struct {
	ID             string              `json:"_id"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	Type           string              `json:"type"`
	Text           *string             `json:"text"`
	FileURL        *string             `json:"fileUrl"`
	ReplyToID      *string             `json:"replyToId"`
	Reactions      map[string][]string `json:"reactions,omitempty"`
	IsRecalled     bool                `json:"isRecalled"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// Recall marks the message recalled and drops its content.
func (m *Message) Recall() {
	m.IsRecalled = true
	m.Text = nil
	m.FileURL = nil
}

// Clone returns a copy that shares no pointers or maps with m.
func (m Message) Clone() Message {
	out := m
	out.Text = cloneString(m.Text)
	out.FileURL = cloneString(m.FileURL)
	out.ReplyToID = cloneString(m.ReplyToID)
	out.Reactions = CloneReactions(m.Reactions)
	return out
}

// CloneReactions deep-copies an emoji -> user ids mapping.
func CloneReactions(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for emoji, users := range in {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
