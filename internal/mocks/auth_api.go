package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
)

type AuthAPIMock struct {
	mock.Mock
}

func (m *AuthAPIMock) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	args := m.Called(ctx, username, password)
	var resp models.LoginResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.LoginResponse)
	}
	return resp, args.Error(1)
}

func (m *AuthAPIMock) Register(ctx context.Context, req models.RegisterRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *AuthAPIMock) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	var pair models.TokenPair
	if val := args.Get(0); val != nil {
		pair = val.(models.TokenPair)
	}
	return pair, args.Error(1)
}

func (m *AuthAPIMock) Logout(ctx context.Context, accessToken, refreshToken string) error {
	args := m.Called(ctx, accessToken, refreshToken)
	return args.Error(0)
}
