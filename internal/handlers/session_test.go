package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/api"
	"chat-client/internal/models"
)

func TestLoginSuccess(t *testing.T) {
	env := setupRouter(t, false)
	env.session.On("Login", mock.Anything, "alice", "pw").Return(nil).Once()

	rec := env.do(t, http.MethodPost, "/login", `{"username":"alice","password":"pw"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "alice", resp["user"].(map[string]any)["username"])
	env.session.AssertExpectations(t)
}

func TestLoginMissingFields(t *testing.T) {
	env := setupRouter(t, false)

	rec := env.do(t, http.MethodPost, "/login", `{"username":"alice"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env.session.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginRejected(t *testing.T) {
	env := setupRouter(t, false)
	env.session.On("Login", mock.Anything, "alice", "bad").
		Return(&api.Error{Kind: api.KindAuthentication, Status: 401, Message: "Wrong username or password"}).Once()

	rec := env.do(t, http.MethodPost, "/login", `{"username":"alice","password":"bad"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Wrong username or password", decode(t, rec)["error"])
}

func TestRegisterValidationError(t *testing.T) {
	env := setupRouter(t, false)
	req := models.RegisterRequest{Username: "alice", Password: "pw", DisplayName: "Alice"}
	env.session.On("Register", mock.Anything, req).
		Return(&api.Error{Kind: api.KindValidation, Status: 409, Message: "Username already taken"}).Once()

	rec := env.do(t, http.MethodPost, "/register", `{"username":"alice","password":"pw","displayName":"Alice"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already taken", decode(t, rec)["error"])
}

func TestRegisterSuccess(t *testing.T) {
	env := setupRouter(t, false)
	env.session.On("Register", mock.Anything, mock.AnythingOfType("models.RegisterRequest")).Return(nil).Once()

	rec := env.do(t, http.MethodPost, "/register", `{"username":"bob","password":"pw"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	env.session.AssertExpectations(t)
}

func TestLogout(t *testing.T) {
	env := setupRouter(t, true)
	env.session.On("Logout", mock.Anything).Return().Once()

	rec := env.do(t, http.MethodPost, "/logout", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	env.session.AssertExpectations(t)
}

func TestMe(t *testing.T) {
	env := setupRouter(t, false)

	rec := env.do(t, http.MethodGet, "/me", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}
