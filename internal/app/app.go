package app

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"chat-client/internal/auth"
	"chat-client/internal/chat"
	"chat-client/internal/middleware"
	"chat-client/internal/models"
	"chat-client/internal/social"
	"chat-client/internal/ws"
)

// App ties the session to the channel and the stores that depend on it.
type App struct {
	Authority *auth.Authority
	Channel   *ws.Manager
	Chat      *chat.Engine
	Social    *social.Store
}

// New composes the services and tears them down whenever the session ends.
func New(authority *auth.Authority, channel *ws.Manager, engine *chat.Engine, store *social.Store) *App {
	a := &App{
		Authority: authority,
		Channel:   channel,
		Chat:      engine,
		Social:    store,
	}
	authority.OnLogout(a.handleLogout)
	return a
}

// Start connects the channel and loads conversations and the social graph
// when a session is present. Load failures are logged, not returned.
func (a *App) Start(ctx context.Context) error {
	if !a.Authority.IsAuthenticated() {
		log.Printf("no session, redirect=%s", middleware.LoginPath)
		return nil
	}

	if err := a.Channel.Connect(ctx); err != nil {
		log.Printf("channel connect failed: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := a.Chat.FetchConversations(gctx); err != nil {
			log.Printf("fetch conversations failed: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.Social.InitData(gctx); err != nil {
			log.Printf("load social graph failed: %v", err)
		}
		return nil
	})
	return g.Wait()
}

// Login authenticates and starts the session services.
func (a *App) Login(ctx context.Context, username, password string) error {
	if err := a.Authority.Login(ctx, username, password); err != nil {
		return err
	}
	return a.Start(ctx)
}

// Logout ends the session. Teardown runs in the logout hook.
func (a *App) Logout(ctx context.Context) {
	a.Authority.Logout(ctx)
}

func (a *App) handleLogout() {
	a.Channel.Disconnect()
	a.Chat.Reset()
	a.Social.Reset()
	log.Printf("session ended, redirect=%s", middleware.LoginPath)
}

// Register creates an account without starting a session.
func (a *App) Register(ctx context.Context, req models.RegisterRequest) error {
	return a.Authority.Register(ctx, req)
}

func (a *App) IsAuthenticated() bool {
	return a.Authority.IsAuthenticated()
}

func (a *App) User() *models.User {
	return a.Authority.User()
}
