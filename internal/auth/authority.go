package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"chat-client/internal/api"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/repositories"
	"chat-client/internal/telemetry"
)

var (
	// ErrSessionExpired is returned when the session can no longer be renewed.
	// Callers must treat it as a hard authentication loss.
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = errors.New("no refresh token")
)

const (
	loginFailedMessage    = "Login failed."
	registerFailedMessage = "Register failed."
	refreshFlightKey      = "refresh"
)

// AuthAPI is the unauthenticated /auth boundary.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) error
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Option configures an Authority.
type Option func(*Authority)

// WithAudit publishes session lifecycle records through emitter.
func WithAudit(emitter *telemetry.AuditEmitter) Option {
	return func(a *Authority) { a.audit = emitter }
}

// Authority owns the session and is the only writer of persisted credentials.
type Authority struct {
	api   AuthAPI
	store repositories.CredentialStore
	audit *telemetry.AuditEmitter

	mu      sync.RWMutex
	session models.Session

	flight singleflight.Group

	hooksMu  sync.Mutex
	onLogout []func()
}

// NewAuthority constructs an Authority with an empty session. Call Restore to
// load a persisted one.
func NewAuthority(authAPI AuthAPI, store repositories.CredentialStore, opts ...Option) *Authority {
	a := &Authority{api: authAPI, store: store}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Restore installs the persisted session, if a complete one exists.
func (a *Authority) Restore(ctx context.Context) error {
	values := make(map[string]string, len(repositories.CredentialKeys))
	for _, key := range repositories.CredentialKeys {
		value, ok, err := a.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
		if ok {
			values[key] = value
		}
	}

	if values[repositories.KeyAccessToken] == "" {
		return nil
	}

	session := models.Session{
		AccessToken:  values[repositories.KeyAccessToken],
		RefreshToken: values[repositories.KeyRefreshToken],
	}
	var user models.User
	if raw := values[repositories.KeyUser]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			session.User = &user
		}
	}

	if !session.Complete() {
		log.Printf("discarding incomplete persisted session")
		return a.store.Clear(ctx)
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	log.Printf("session restored user_id=%s", user.ID)
	return nil
}

// Login authenticates and installs a new session. On failure the session is
// left untouched and the error carries a user-facing message.
func (a *Authority) Login(ctx context.Context, username, password string) error {
	resp, err := a.api.Login(ctx, username, password)
	if err != nil {
		a.audit.Emit(ctx, telemetry.LevelWarn, telemetry.ActionLoginFailed, api.UserMessage(err, loginFailedMessage), nil)
		return api.WithFallback(err, loginFailedMessage)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return &api.Error{Kind: api.KindServer, Message: loginFailedMessage}
	}

	user := resp.User
	session := models.Session{User: &user, AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()

	if err := a.persist(ctx, session); err != nil {
		log.Printf("persist session failed user_id=%s: %v", user.ID, err)
	}
	a.audit.Emit(ctx, telemetry.LevelInfo, telemetry.ActionLogin, "login succeeded", &user.ID)
	return nil
}

// Register creates an account without starting a session.
func (a *Authority) Register(ctx context.Context, req models.RegisterRequest) error {
	if err := a.api.Register(ctx, req); err != nil {
		return api.WithFallback(err, registerFailedMessage)
	}
	return nil
}

// Refresh renews the token pair using the stored refresh token and returns the
// new access token. Concurrent callers share a single in-flight refresh. On
// failure the session is invalidated and the error wraps ErrSessionExpired.
func (a *Authority) Refresh(ctx context.Context) (string, error) {
	v, err, _ := a.flight.Do(refreshFlightKey, func() (interface{}, error) {
		return a.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Authority) refresh(ctx context.Context) (string, error) {
	a.mu.RLock()
	refreshToken := a.session.RefreshToken
	userID := a.userIDLocked()
	a.mu.RUnlock()

	if refreshToken == "" {
		observability.IncTokenRefresh("missing")
		a.invalidate(ctx)
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, ErrNoRefreshToken)
	}

	pair, err := a.api.Refresh(ctx, refreshToken)
	if err == nil && pair.AccessToken == "" {
		err = errors.New("refresh returned no access token")
	}
	if err != nil {
		observability.IncTokenRefresh("failure")
		a.invalidate(ctx)
		a.audit.Emit(ctx, telemetry.LevelWarn, telemetry.ActionRefreshFailed, err.Error(), userID)
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	a.mu.Lock()
	if a.session.RefreshToken != refreshToken {
		// logged out while the call was in flight
		a.mu.Unlock()
		observability.IncTokenRefresh("superseded")
		return "", ErrSessionExpired
	}
	a.session.AccessToken = pair.AccessToken
	a.session.RefreshToken = pair.RefreshToken
	a.mu.Unlock()

	if err := a.store.Set(ctx, repositories.KeyAccessToken, pair.AccessToken); err != nil {
		log.Printf("persist access token failed: %v", err)
	}
	if err := a.store.Set(ctx, repositories.KeyRefreshToken, pair.RefreshToken); err != nil {
		log.Printf("persist refresh token failed: %v", err)
	}
	observability.IncTokenRefresh("success")
	return pair.AccessToken, nil
}

// Logout revokes the refresh token on a best-effort basis, then always clears
// the session and persisted credentials and runs the OnLogout hooks.
func (a *Authority) Logout(ctx context.Context) {
	a.mu.RLock()
	session := a.session
	userID := a.userIDLocked()
	a.mu.RUnlock()

	defer func() {
		a.invalidate(ctx)
		a.audit.Emit(ctx, telemetry.LevelInfo, telemetry.ActionLogout, "session cleared", userID)
		a.runLogoutHooks()
	}()

	if session.RefreshToken == "" {
		return
	}
	if err := a.api.Logout(ctx, session.AccessToken, session.RefreshToken); err != nil {
		log.Printf("logout error: %v", err)
	}
}

// OnLogout registers fn to run after every logout, e.g. to return the UI to
// the login entry point.
func (a *Authority) OnLogout(fn func()) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.onLogout = append(a.onLogout, fn)
}

// IsAuthenticated reports whether an access token is present.
func (a *Authority) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Authenticated()
}

// AccessToken returns the current access token, or "".
func (a *Authority) AccessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.AccessToken
}

// Session returns a copy of the current session.
func (a *Authority) Session() models.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := a.session
	if out.User != nil {
		user := *out.User
		out.User = &user
	}
	return out
}

// User returns the signed-in user, or nil.
func (a *Authority) User() *models.User {
	return a.Session().User
}

func (a *Authority) persist(ctx context.Context, session models.Session) error {
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, repositories.KeyUser, string(userJSON)); err != nil {
		return err
	}
	if err := a.store.Set(ctx, repositories.KeyAccessToken, session.AccessToken); err != nil {
		return err
	}
	return a.store.Set(ctx, repositories.KeyRefreshToken, session.RefreshToken)
}

func (a *Authority) invalidate(ctx context.Context) {
	a.mu.Lock()
	a.session = models.Session{}
	a.mu.Unlock()

	if err := a.store.Clear(ctx); err != nil {
		log.Printf("clear credential store failed: %v", err)
	}
}

func (a *Authority) runLogoutHooks() {
	a.hooksMu.Lock()
	hooks := append([]func(){}, a.onLogout...)
	a.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (a *Authority) userIDLocked() *string {
	if a.session.User == nil {
		return nil
	}
	id := a.session.User.ID
	return &id
}
