package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/models"
)

// LoginPath is the entry point unauthenticated callers are sent to.
const LoginPath = "/login"

// SessionState reports the current session.
type SessionState interface {
	IsAuthenticated() bool
	User() *models.User
}

// RequireSession rejects requests while no session is active and points the
// caller at the login entry point.
func RequireSession(session SessionState) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.IsAuthenticated() {
			c.Header("Location", LoginPath)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}

		if user := session.User(); user != nil {
			c.Set("userID", user.ID)
		}
		c.Next()
	}
}
