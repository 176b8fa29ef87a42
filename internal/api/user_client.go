package api

import (
	"context"
	"net/http"
	"net/url"

	"chat-client/internal/models"
)

// SearchUsers looks up users by a free-text query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var resp struct {
		Users []models.User `json:"users"`
	}
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/users/search",
		Query:  url.Values{"q": []string{query}},
	}, &resp)
	return resp.Users, err
}

// ListFriends returns the caller's friends.
func (c *Client) ListFriends(ctx context.Context) ([]models.User, error) {
	var resp struct {
		Friends []models.User `json:"friends"`
	}
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/users/friends"}, &resp)
	return resp.Friends, err
}

// ListFriendRequests returns incoming and outgoing requests.
func (c *Client) ListFriendRequests(ctx context.Context) (models.FriendRequests, error) {
	var resp models.FriendRequests
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/friends/requests"}, &resp)
	return resp, err
}

// SendFriendRequest asks toID to become a friend.
func (c *Client) SendFriendRequest(ctx context.Context, toID string) (models.FriendRequest, error) {
	var resp struct {
		Request models.FriendRequest `json:"request"`
	}
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/friends/send",
		Body:   map[string]string{"toId": toID},
	}, &resp)
	return resp.Request, err
}

// AcceptFriendRequest accepts an incoming request.
func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/friends/accept",
		Body:   map[string]string{"requestId": requestID},
	}, nil)
}

// DeclineFriendRequest declines an incoming request.
func (c *Client) DeclineFriendRequest(ctx context.Context, requestID string) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/friends/decline",
		Body:   map[string]string{"requestId": requestID},
	}, nil)
}
