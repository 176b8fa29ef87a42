package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/chat"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/social"
	"chat-client/internal/ws"
)

// fakeChannel acks every message:send with ackReply.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string][]ws.Handler
	ackReply json.RawMessage
	online   []string
}

func (f *fakeChannel) Emit(string, interface{}) error { return nil }

func (f *fakeChannel) EmitWithAck(_ string, _ interface{}, ack ws.AckFunc) {
	if f.ackReply == nil {
		ack(nil, ws.ErrNotConnected)
		return
	}
	ack(f.ackReply, nil)
}

func (f *fakeChannel) On(event string, handler ws.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string][]ws.Handler)
	}
	f.handlers[event] = append(f.handlers[event], handler)
}

func (f *fakeChannel) OnlineUsers() []string { return f.online }

type testEnv struct {
	router    *gin.Engine
	session   *mocks.SessionMock
	chatAPI   *mocks.ConversationAPIMock
	socialAPI *mocks.SocialAPIMock
	channel   *fakeChannel
	engine    *chat.Engine
}

func setupRouter(t *testing.T, authenticated bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		session:   new(mocks.SessionMock),
		chatAPI:   new(mocks.ConversationAPIMock),
		socialAPI: new(mocks.SocialAPIMock),
		channel:   &fakeChannel{},
	}
	env.session.On("IsAuthenticated").Return(authenticated).Maybe()
	env.session.On("User").Return(&models.User{ID: "u1", Username: "alice"}).Maybe()

	env.engine = chat.NewEngine(env.chatAPI, env.channel)
	env.router = gin.New()
	RegisterRoutes(env.router,
		NewSessionHandler(env.session),
		NewChatHandler(env.engine, env.channel),
		NewFriendHandler(social.NewStore(env.socialAPI)),
		env.session,
	)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func selectConversation(t *testing.T, env *testEnv, id string, page []models.Message) {
	t.Helper()
	env.chatAPI.On("ListMessages", mock.Anything, id, "", chat.PageSize).Return(page, nil).Once()
	rec := env.do(t, http.MethodPost, "/conversations/"+id+"/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
