package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/app"
	"chat-client/internal/auth"
	"chat-client/internal/chat"
	"chat-client/internal/mocks"
	"chat-client/internal/repositories"
	"chat-client/internal/social"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

func newDebugRouter(t *testing.T, emitter *telemetry.AuditEmitter, enabled bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authority := auth.NewAuthority(new(mocks.AuthAPIMock), repositories.NewMemoryCredentialStore())
	channel := ws.NewManager(ws.Options{URL: "ws://127.0.0.1:1/ws"}, authority)
	client := app.New(authority, channel, chat.NewEngine(new(mocks.ConversationAPIMock), channel), social.NewStore(new(mocks.SocialAPIMock)))

	router := gin.New()
	RegisterDebugRoutes(router, client, emitter, enabled)
	return router
}

func TestDebugRoutesDisabled(t *testing.T) {
	router := newDebugRouter(t, nil, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/state", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugStateReportsDisconnectedClient(t *testing.T) {
	router := newDebugRouter(t, nil, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, false, resp["authenticated"])
	assert.Equal(t, "disconnected", resp["channel"].(map[string]any)["state"])
	assert.Equal(t, false, resp["chat"].(map[string]any)["hasMore"])
}

func TestDebugAuditTest(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	var captured telemetry.AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.client", mock.AnythingOfType("telemetry.AuditEnvelope")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(telemetry.AuditEnvelope) }).
		Return(nil).Once()
	router := newDebugRouter(t, telemetry.NewAuditEmitter(publisher, "audit.client", "chat-client", "test", ""), true)

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
	assert.Equal(t, telemetry.ActionAuditTest, captured.Payload.Action)
	assert.Equal(t, "audit test request_id=req-42", captured.Payload.Text)
}

func TestDebugAuditTestWithoutEmitter(t *testing.T) {
	router := newDebugRouter(t, nil, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
