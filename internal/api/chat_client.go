package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"chat-client/internal/models"
)

// ListConversations returns the caller's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/conversations"}, &resp)
	return resp.Conversations, err
}

// ListMessages returns one page of history, most recent first. An empty
// cursor requests the newest page.
func (c *Client) ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]models.Message, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	query.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/messages/" + url.PathEscape(conversationID),
		Route:  "/messages/:conversationId",
		Query:  query,
	}, &resp)
	return resp.Messages, err
}

// CreatePrivateConversation opens (or returns the existing) one-to-one conversation with userID.
func (c *Client) CreatePrivateConversation(ctx context.Context, userID string) (models.Conversation, error) {
	var resp struct {
		Conversation models.Conversation `json:"conversation"`
	}
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/conversations/private",
		Body:   map[string]string{"userId": userID},
	}, &resp)
	return resp.Conversation, err
}
