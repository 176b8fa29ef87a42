package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/social"
)

// FriendHandler exposes user search, friends and friend requests.
type FriendHandler struct {
	store *social.Store
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(store *social.Store) *FriendHandler {
	return &FriendHandler{store: store}
}

func (h *FriendHandler) SearchUsers(c *gin.Context) {
	users, err := h.store.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err, "Search failed.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// ListFriends returns cached friends. ?refresh=true reloads them first.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if err := h.store.FetchFriends(c.Request.Context()); err != nil {
			respondError(c, err, "failed to load friends")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"friends": h.store.Friends()})
}

// ListRequests returns cached friend requests. ?refresh=true reloads them first.
func (h *FriendHandler) ListRequests(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if err := h.store.FetchFriendRequests(c.Request.Context()); err != nil {
			respondError(c, err, "failed to load friend requests")
			return
		}
	}
	reqs := h.store.FriendRequests()
	c.JSON(http.StatusOK, gin.H{"incoming": reqs.Incoming, "outgoing": reqs.Outgoing})
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req struct {
		ToID string `json:"toId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sent, err := h.store.SendFriendRequest(c.Request.Context(), req.ToID)
	if err != nil {
		respondError(c, err, "Failed to send friend request.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": sent})
}

func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	requestID, ok := bindRequestID(c)
	if !ok {
		return
	}
	if err := h.store.AcceptFriendRequest(c.Request.Context(), requestID); err != nil {
		respondError(c, err, "Failed to accept friend request.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *FriendHandler) DeclineRequest(c *gin.Context) {
	requestID, ok := bindRequestID(c)
	if !ok {
		return
	}
	if err := h.store.DeclineFriendRequest(c.Request.Context(), requestID); err != nil {
		respondError(c, err, "Failed to decline friend request.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}

// Relationship classifies a user for the add-friend button.
func (h *FriendHandler) Relationship(c *gin.Context) {
	userID := c.Param("user_id")
	resp := gin.H{"userId": userID, "relationship": h.store.Relationship(userID)}
	if requestID, ok := h.store.IncomingRequestID(userID); ok {
		resp["requestId"] = requestID
	}
	c.JSON(http.StatusOK, resp)
}

func bindRequestID(c *gin.Context) (string, bool) {
	var req struct {
		RequestID string `json:"requestId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return req.RequestID, true
}
