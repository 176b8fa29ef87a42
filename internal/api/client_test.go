package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/api"
	"chat-client/internal/auth"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/repositories"
)

type fakeTokens struct {
	mu         sync.Mutex
	token      string
	next       string
	refreshErr error
	refreshes  int
	logouts    int
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.next
	return f.token, nil
}

func (f *fakeTokens) Logout(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.token = ""
}

// conversationServer answers GET /api/conversations with 200 only for validToken.
func conversationServer(t *testing.T, validToken string, unauthorized *int32) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/conversations", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+validToken {
			atomic.AddInt32(unauthorized, 1)
			c.JSON(http.StatusUnauthorized, gin.H{"message": "jwt expired"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": []gin.H{{"_id": "c1", "participants": []gin.H{}}}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestDoAttachesBearerToken(t *testing.T) {
	var seen atomic.Value
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/users/friends", func(c *gin.Context) {
		seen.Store(c.GetHeader("Authorization"))
		assert.NotEmpty(t, c.GetHeader("X-Request-Id"))
		assert.Equal(t, "device-1", c.GetHeader("X-Device-Id"))
		c.JSON(http.StatusOK, gin.H{"friends": []gin.H{{"_id": "u2", "username": "bob"}}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.NewClient(srv.URL+"/api", srv.Client(), &fakeTokens{token: "tok"}, "device-1")
	friends, err := client.ListFriends(context.Background())

	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)
	assert.Equal(t, "Bearer tok", seen.Load())
}

func TestDoRefreshesAndRetriesOnce(t *testing.T) {
	var unauthorized int32
	srv := conversationServer(t, "fresh", &unauthorized)
	tokens := &fakeTokens{token: "stale", next: "fresh"}

	client := api.NewClient(srv.URL+"/api", srv.Client(), tokens, "")
	convs, err := client.ListConversations(context.Background())

	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
	assert.Equal(t, 1, tokens.refreshes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&unauthorized))
}

func TestDoRetriesAtMostOnce(t *testing.T) {
	var unauthorized int32
	srv := conversationServer(t, "never-issued", &unauthorized)
	tokens := &fakeTokens{token: "stale", next: "still-stale"}

	client := api.NewClient(srv.URL+"/api", srv.Client(), tokens, "")
	_, err := client.ListConversations(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrAuthentication)
	assert.Equal(t, 1, tokens.refreshes)
	assert.Equal(t, 0, tokens.logouts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&unauthorized))
}

func TestDoLogsOutWhenRefreshFails(t *testing.T) {
	var unauthorized int32
	srv := conversationServer(t, "fresh", &unauthorized)
	tokens := &fakeTokens{token: "stale", refreshErr: auth.ErrSessionExpired}

	client := api.NewClient(srv.URL+"/api", srv.Client(), tokens, "")
	_, err := client.ListConversations(context.Background())

	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "jwt expired", apiErr.Message)
	assert.Equal(t, 1, tokens.logouts)
}

func TestDoPropagatesOtherErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/friends/send", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot send a request to yourself"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	tokens := &fakeTokens{token: "tok"}

	client := api.NewClient(srv.URL+"/api", srv.Client(), tokens, "")
	_, err := client.SendFriendRequest(context.Background(), "u1")

	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Equal(t, "Cannot send a request to yourself", err.Error())
	assert.Equal(t, 0, tokens.refreshes)
}

func TestDoNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := api.NewClient(url, nil, &fakeTokens{}, "")
	_, err := client.ListFriends(context.Background())

	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.Equal(t, "fallback", api.UserMessage(err, "fallback"))
}

func TestListMessagesSendsCursorAndLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/messages/:conversation_id", func(c *gin.Context) {
		assert.Equal(t, "c1", c.Param("conversation_id"))
		assert.Equal(t, "m5", c.Query("cursor"))
		assert.Equal(t, "20", c.Query("limit"))
		c.JSON(http.StatusOK, gin.H{"messages": []gin.H{{"_id": "m4", "conversationId": "c1"}}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.NewClient(srv.URL+"/api", srv.Client(), &fakeTokens{token: "tok"}, "")
	msgs, err := client.ListMessages(context.Background(), "c1", "m5", 20)

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m4", msgs[0].ID)
}

func TestConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	var unauthorized int32
	srv := conversationServer(t, "access-2", &unauthorized)

	authAPI := new(mocks.AuthAPIMock)
	authority := auth.NewAuthority(authAPI, repositories.NewMemoryCredentialStore())
	authAPI.On("Login", mock.Anything, "alice", "pw").Return(models.LoginResponse{
		User: models.User{ID: "u1", Username: "alice"}, AccessToken: "access-1", RefreshToken: "refresh-1",
	}, nil).Once()
	require.NoError(t, authority.Login(context.Background(), "alice", "pw"))

	release := make(chan struct{})
	authAPI.On("Refresh", mock.Anything, "refresh-1").
		Run(func(mock.Arguments) { <-release }).
		Return(models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil).Once()

	client := api.NewClient(srv.URL+"/api", srv.Client(), authority, "")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.ListConversations(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&unauthorized) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	authAPI.AssertNumberOfCalls(t, "Refresh", 1)
	assert.Equal(t, "access-2", authority.AccessToken())
}

func TestLateUnauthorizedReusesCompletedRefresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var stale int32
	rotated := make(chan struct{})
	var rotatedOnce sync.Once
	var mu sync.Mutex
	var seen []string

	r := gin.New()
	r.GET("/api/conversations", func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		mu.Lock()
		seen = append(seen, header)
		mu.Unlock()
		if header == "Bearer access-2" {
			rotatedOnce.Do(func() { close(rotated) })
			c.JSON(http.StatusOK, gin.H{"conversations": []gin.H{}})
			return
		}
		// the second stale request is answered only after the refreshed retry succeeded
		if atomic.AddInt32(&stale, 1) == 2 {
			<-rotated
		}
		c.JSON(http.StatusUnauthorized, gin.H{"message": "jwt expired"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	authAPI := new(mocks.AuthAPIMock)
	authority := auth.NewAuthority(authAPI, repositories.NewMemoryCredentialStore())
	authAPI.On("Login", mock.Anything, "alice", "pw").Return(models.LoginResponse{
		User: models.User{ID: "u1", Username: "alice"}, AccessToken: "access-1", RefreshToken: "refresh-1",
	}, nil).Once()
	require.NoError(t, authority.Login(context.Background(), "alice", "pw"))
	authAPI.On("Refresh", mock.Anything, "refresh-1").
		Return(models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil).Once()

	client := api.NewClient(srv.URL+"/api", srv.Client(), authority, "")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.ListConversations(context.Background())
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	authAPI.AssertNumberOfCalls(t, "Refresh", 1)
	assert.Equal(t, "access-2", authority.AccessToken())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer access-1", "Bearer access-1", "Bearer access-2", "Bearer access-2"}, seen)
}
