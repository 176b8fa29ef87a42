package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/chat"
	"chat-client/internal/models"
)

// Presence reports which users are online.
type Presence interface {
	OnlineUsers() []string
}

// ChatHandler exposes conversations and the open timeline.
type ChatHandler struct {
	engine   *chat.Engine
	presence Presence
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(engine *chat.Engine, presence Presence) *ChatHandler {
	return &ChatHandler{engine: engine, presence: presence}
}

// ListConversations returns the conversation list. ?refresh=true reloads it first.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations := h.engine.Conversations()
	if c.Query("refresh") == "true" {
		var err error
		conversations, err = h.engine.FetchConversations(c.Request.Context())
		if err != nil {
			respondError(c, err, "failed to load conversations")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations":         conversations,
		"currentConversationId": h.engine.CurrentConversationID(),
	})
}

// CreatePrivateConversation opens a one-to-one conversation and selects it.
func (h *ChatHandler) CreatePrivateConversation(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.engine.CreatePrivateConversation(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err, "could not create conversation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// SelectConversation opens a conversation and returns its timeline.
func (h *ChatHandler) SelectConversation(c *gin.Context) {
	if err := h.engine.SelectConversation(c.Request.Context(), c.Param("conversation_id")); err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	h.writeTimeline(c, http.StatusOK)
}

// GetMessages returns the open timeline, oldest first.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	h.writeTimeline(c, http.StatusOK)
}

// LoadOlder prepends the previous history page.
func (h *ChatHandler) LoadOlder(c *gin.Context) {
	if _, err := h.engine.LoadOlder(c.Request.Context()); err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	h.writeTimeline(c, http.StatusOK)
}

// Reload refetches the newest page of the open conversation.
func (h *ChatHandler) Reload(c *gin.Context) {
	if err := h.engine.Reload(c.Request.Context()); err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	h.writeTimeline(c, http.StatusOK)
}

// SendMessage sends over the real-time channel and returns the stored message.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req chat.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}
	if (req.Text == nil || *req.Text == "") && (req.FileURL == nil || *req.FileURL == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text or fileUrl required"})
		return
	}

	msg, err := h.engine.SendMessage(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Send failed.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Presence lists online user ids.
func (h *ChatHandler) Presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.presence.OnlineUsers()})
}

func (h *ChatHandler) writeTimeline(c *gin.Context, status int) {
	c.JSON(status, gin.H{
		"conversationId": h.engine.CurrentConversationID(),
		"messages":       h.engine.Timeline(),
		"hasMore":        h.engine.HasMore(),
		"loading":        h.engine.Loading(),
	})
}
