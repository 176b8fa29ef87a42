package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/api"
	"chat-client/internal/app"
	"chat-client/internal/auth"
	"chat-client/internal/chat"
	"chat-client/internal/config"
	"chat-client/internal/handlers"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/repositories"
	"chat-client/internal/social"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

const auditRoutingKey = "audit.client"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("env file ignored: %v", err)
	}
	cfg, err := config.Load(getEnv("CHAT_CONFIG", ""))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Endpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	publisher := rabbitmq.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
	log.Printf("event publisher mode=%s reason=%s", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Environment, cfg.DeviceID)

	store, err := repositories.OpenCredentialStore(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("failed to open credential store: %v", err)
	}

	httpClient := &http.Client{Timeout: cfg.API.RequestTimeout}
	authority := auth.NewAuthority(api.NewAuthClient(cfg.API.BaseURL, httpClient, cfg.DeviceID), store, auth.WithAudit(audit))
	if err := authority.Restore(ctx); err != nil {
		log.Printf("session restore failed: %v", err)
	}

	gateway := api.NewClient(cfg.API.BaseURL, httpClient, authority, cfg.DeviceID)
	channel := ws.NewManager(ws.Options{
		URL:       cfg.API.SocketURL,
		DeviceID:  cfg.DeviceID,
		Reconnect: true,
	}, authority)
	engine := chat.NewEngine(gateway, channel)
	socialStore := social.NewStore(gateway)
	client := app.New(authority, channel, engine, socialStore)

	if err := client.Start(ctx); err != nil {
		log.Printf("session start failed: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.ServiceName), observability.HTTPMetricsMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(router,
		handlers.NewSessionHandler(client),
		handlers.NewChatHandler(engine, channel),
		handlers.NewFriendHandler(socialStore),
		client,
	)
	handlers.RegisterDebugRoutes(router, client, audit, cfg.Server.DebugRoutes)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: router}
	go func() {
		log.Printf("local api listening addr=%s device_id=%s", cfg.Server.ListenAddr, cfg.DeviceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	channel.Disconnect()
	if err := store.Close(); err != nil {
		log.Printf("credential store close: %v", err)
	}
	if err := publisher.Close(); err != nil {
		log.Printf("publisher close: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
