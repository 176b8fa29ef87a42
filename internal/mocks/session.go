package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
)

type SessionMock struct {
	mock.Mock
}

func (m *SessionMock) Login(ctx context.Context, username, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

func (m *SessionMock) Register(ctx context.Context, req models.RegisterRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *SessionMock) Logout(ctx context.Context) {
	m.Called(ctx)
}

func (m *SessionMock) IsAuthenticated() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *SessionMock) User() *models.User {
	args := m.Called()
	if val := args.Get(0); val != nil {
		return val.(*models.User)
	}
	return nil
}
