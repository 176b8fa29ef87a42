package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func textMessage(id, conv, text string) models.Message {
	return models.Message{ID: id, ConversationID: conv, SenderID: "u2", Type: models.MessageTypeText, Text: &text, CreatedAt: time.Now()}
}

func TestGuardedRouteRequiresSession(t *testing.T) {
	env := setupRouter(t, false)

	rec := env.do(t, http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	env.chatAPI.AssertNotCalled(t, "ListConversations", mock.Anything)
}

func TestListConversationsRefresh(t *testing.T) {
	env := setupRouter(t, true)
	env.chatAPI.On("ListConversations", mock.Anything).Return([]models.Conversation{{ID: "c1"}, {ID: "c2"}}, nil).Once()

	rec := env.do(t, http.MethodGet, "/conversations?refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["conversations"], 2)

	rec = env.do(t, http.MethodGet, "/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["conversations"], 2)
	env.chatAPI.AssertExpectations(t)
}

func TestListConversationsUpstreamError(t *testing.T) {
	env := setupRouter(t, true)
	env.chatAPI.On("ListConversations", mock.Anything).Return(nil, assert.AnError).Once()

	rec := env.do(t, http.MethodGet, "/conversations?refresh=true", "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed to load conversations", decode(t, rec)["error"])
}

func TestSelectConversationReturnsTimeline(t *testing.T) {
	env := setupRouter(t, true)
	env.chatAPI.On("ListMessages", mock.Anything, "c1", "", 20).
		Return([]models.Message{textMessage("m2", "c1", "later"), textMessage("m1", "c1", "first")}, nil).Once()

	rec := env.do(t, http.MethodPost, "/conversations/c1/select", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "c1", resp["conversationId"])
	assert.Equal(t, false, resp["hasMore"])
	messages := resp["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].(map[string]any)["_id"])
}

func TestLoadOlderWithoutConversation(t *testing.T) {
	env := setupRouter(t, true)

	rec := env.do(t, http.MethodPost, "/messages/older", "")

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSendMessageWithoutConversation(t *testing.T) {
	env := setupRouter(t, true)

	rec := env.do(t, http.MethodPost, "/messages", `{"text":"hi"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no conversation selected", decode(t, rec)["error"])
}

func TestSendMessageRequiresContent(t *testing.T) {
	env := setupRouter(t, true)

	rec := env.do(t, http.MethodPost, "/messages", `{"type":"text"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageSuccess(t *testing.T) {
	env := setupRouter(t, true)
	selectConversation(t, env, "c1", nil)

	stored, err := json.Marshal(textMessage("m9", "c1", "hi"))
	require.NoError(t, err)
	env.channel.ackReply, err = json.Marshal(models.SendAck{Success: true, Message: stored})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/messages", `{"text":"hi"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "m9", decode(t, rec)["message"].(map[string]any)["_id"])
	assert.Len(t, env.engine.Timeline(), 1)
}

func TestSendMessageRejected(t *testing.T) {
	env := setupRouter(t, true)
	selectConversation(t, env, "c1", nil)
	env.channel.ackReply = json.RawMessage(`{"success":false,"message":"Conversation not found"}`)

	rec := env.do(t, http.MethodPost, "/messages", `{"text":"hi"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Conversation not found", decode(t, rec)["error"])
}

func TestSendMessageChannelDown(t *testing.T) {
	env := setupRouter(t, true)
	selectConversation(t, env, "c1", nil)

	rec := env.do(t, http.MethodPost, "/messages", `{"text":"hi"}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPresence(t *testing.T) {
	env := setupRouter(t, true)
	env.channel.online = []string{"u2", "u3"}

	rec := env.do(t, http.MethodGet, "/presence", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"u2", "u3"}, decode(t, rec)["online"])
}
