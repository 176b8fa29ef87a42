package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
)

type ConversationAPIMock struct {
	mock.Mock
}

func (m *ConversationAPIMock) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationAPIMock) ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, cursor, limit)
	var page []models.Message
	if val := args.Get(0); val != nil {
		page = val.([]models.Message)
	}
	return page, args.Error(1)
}

func (m *ConversationAPIMock) CreatePrivateConversation(ctx context.Context, userID string) (models.Conversation, error) {
	args := m.Called(ctx, userID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

type SocialAPIMock struct {
	mock.Mock
}

func (m *SocialAPIMock) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	args := m.Called(ctx, query)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *SocialAPIMock) ListFriends(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *SocialAPIMock) ListFriendRequests(ctx context.Context) (models.FriendRequests, error) {
	args := m.Called(ctx)
	var reqs models.FriendRequests
	if val := args.Get(0); val != nil {
		reqs = val.(models.FriendRequests)
	}
	return reqs, args.Error(1)
}

func (m *SocialAPIMock) SendFriendRequest(ctx context.Context, toID string) (models.FriendRequest, error) {
	args := m.Called(ctx, toID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *SocialAPIMock) AcceptFriendRequest(ctx context.Context, requestID string) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

func (m *SocialAPIMock) DeclineFriendRequest(ctx context.Context, requestID string) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}
