package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/models"
)

// SessionService is the session surface exposed to the local UI.
type SessionService interface {
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, req models.RegisterRequest) error
	Logout(ctx context.Context)
	IsAuthenticated() bool
	User() *models.User
}

// SessionHandler manages login, registration and logout.
type SessionHandler struct {
	session SessionService
}

func NewSessionHandler(session SessionService) *SessionHandler {
	return &SessionHandler{session: session}
}

// Login signs in and starts the real-time session.
func (h *SessionHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.session.Login(c.Request.Context(), req.Username, req.Password); err != nil {
		respondError(c, err, "Login failed.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": h.session.User()})
}

// Register creates an account. The caller still has to log in.
func (h *SessionHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.session.Register(c.Request.Context(), req); err != nil {
		respondError(c, err, "Register failed.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

// Logout always succeeds; local credentials are cleared even when the server
// cannot be reached.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.session.Logout(c.Request.Context())
	c.Header("Location", "/login")
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// Me reports the current session.
func (h *SessionHandler) Me(c *gin.Context) {
	if !h.session.IsAuthenticated() {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": h.session.User()})
}
