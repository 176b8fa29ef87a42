package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"chat-client/internal/models"
)

// AuthClient calls the /auth endpoints directly. It never goes through the
// gateway's refresh interception, so it is safe to use from the Token Authority.
type AuthClient struct {
	gateway *Client
}

// NewAuthClient constructs the raw auth client. httpClient may be nil.
func NewAuthClient(baseURL string, httpClient *http.Client, deviceID string) *AuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &AuthClient{gateway: &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		deviceID: deviceID,
	}}
}

// Login exchanges credentials for a session.
func (a *AuthClient) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	var resp models.LoginResponse
	err := a.call(ctx, "/auth/login", "", map[string]string{"username": username, "password": password}, &resp)
	return resp, err
}

// Register creates an account. It does not start a session.
func (a *AuthClient) Register(ctx context.Context, req models.RegisterRequest) error {
	return a.call(ctx, "/auth/register", "", req, nil)
}

// Refresh mints a new token pair from a refresh token.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var resp models.TokenPair
	err := a.call(ctx, "/auth/refresh", "", map[string]string{"refreshToken": refreshToken}, &resp)
	return resp, err
}

// Logout revokes the refresh token server-side.
func (a *AuthClient) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return a.call(ctx, "/auth/logout", accessToken, map[string]string{"refreshToken": refreshToken}, nil)
}

func (a *AuthClient) call(ctx context.Context, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	respBody, err := a.gateway.send(ctx, Request{Method: http.MethodPost, Path: path}, body, token)
	if err != nil {
		return err
	}
	return decodeInto(respBody, out)
}
