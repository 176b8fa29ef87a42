package models

import "encoding/json"

// Real-time event names.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventConversationJoin = "conversation:join"
	EventMessageSend      = "message:send"
	EventMessageNew       = "message:new"
	EventMessageRecalled  = "message:recalled"
	EventReactionUpdated  = "message:reaction_updated"
	EventUserOnline       = "user:online"
)

// JoinRequest is emitted to subscribe to a conversation room.
type JoinRequest struct {
	ConversationID string `json:"conversationId"`
}

// SendRequest is the payload of message:send.
type SendRequest struct {
	ConversationID string  `json:"conversationId"`
	Type           string  `json:"type"`
	Text           *string `json:"text"`
	FileURL        *string `json:"fileUrl"`
	ReplyToID      *string `json:"replyToId"`
}

// SendAck is the server acknowledgement of message:send. Message holds the
// stored message on success and the rejection reason otherwise.
type SendAck struct {
	Success bool            `json:"success"`
	Message json.RawMessage `json:"message"`
}

// RecallEvent is delivered with message:recalled.
type RecallEvent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// ReactionEvent is delivered with message:reaction_updated.
type ReactionEvent struct {
	MessageID      string              `json:"messageId"`
	ConversationID string              `json:"conversationId"`
	Reactions      map[string][]string `json:"reactions"`
}

// PresenceEvent is delivered with user:online.
type PresenceEvent struct {
	UserID string `json:"userId"`
}
