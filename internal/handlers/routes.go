package handlers

import (
	"github.com/gin-gonic/gin"

	"chat-client/internal/middleware"
)

// RegisterRoutes wires the local control API. Everything except the session
// endpoints requires an active session.
func RegisterRoutes(router gin.IRouter, session *SessionHandler, chats *ChatHandler, friends *FriendHandler, guard middleware.SessionState) {
	router.POST("/login", session.Login)
	router.POST("/register", session.Register)
	router.POST("/logout", session.Logout)
	router.GET("/me", session.Me)

	authed := router.Group("/", middleware.RequireSession(guard))

	authed.GET("/conversations", chats.ListConversations)
	authed.POST("/conversations/private", chats.CreatePrivateConversation)
	authed.POST("/conversations/:conversation_id/select", chats.SelectConversation)
	authed.GET("/messages", chats.GetMessages)
	authed.POST("/messages", chats.SendMessage)
	authed.POST("/messages/older", chats.LoadOlder)
	authed.POST("/messages/reload", chats.Reload)
	authed.GET("/presence", chats.Presence)

	authed.GET("/users/search", friends.SearchUsers)
	authed.GET("/users/:user_id/relationship", friends.Relationship)
	authed.GET("/friends", friends.ListFriends)
	authed.GET("/friends/requests", friends.ListRequests)
	authed.POST("/friends/send", friends.SendRequest)
	authed.POST("/friends/accept", friends.AcceptRequest)
	authed.POST("/friends/decline", friends.DeclineRequest)
}
