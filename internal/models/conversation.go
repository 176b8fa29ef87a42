package models

import "time"

// Conversation is an entry of the conversation list.
type Conversation struct {
	ID           string    `json:"_id"`
	Participants []User    `json:"participants"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Participants != nil {
		out.Participants = append([]User(nil), c.Participants...)
	}
	if c.LastMessage != nil {
		last := c.LastMessage.Clone()
		out.LastMessage = &last
	}
	return out
}
