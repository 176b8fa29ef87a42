package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/api"
	"chat-client/internal/auth"
	"chat-client/internal/chat"
	"chat-client/internal/middleware"
	"chat-client/internal/ws"
)

// respondError writes {"error": message} with a status derived from err.
func respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusBadGateway
	message := api.UserMessage(err, fallback)

	var apiErr *api.Error
	var rejected *chat.RejectedError
	switch {
	case errors.Is(err, auth.ErrSessionExpired), errors.Is(err, api.ErrAuthentication):
		status = http.StatusUnauthorized
		c.Header("Location", middleware.LoginPath)
	case errors.As(err, &apiErr) && apiErr.Kind == api.KindValidation:
		status = apiErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
	case errors.As(err, &rejected):
		status = http.StatusUnprocessableEntity
		message = rejected.Reason
	case errors.Is(err, chat.ErrNoConversation), errors.Is(err, chat.ErrFetchInProgress):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, ws.ErrNotConnected), errors.Is(err, ws.ErrDisconnected):
		status = http.StatusServiceUnavailable
		message = "real-time channel unavailable"
	}

	c.JSON(status, gin.H{"error": message})
}
