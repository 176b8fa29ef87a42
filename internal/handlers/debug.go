package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/app"
	"chat-client/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, client *app.App, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/state", func(c *gin.Context) {
		info, connected := client.Channel.Info()
		channel := gin.H{"state": client.Channel.State().String()}
		if connected {
			channel["conn_id"] = info.ConnID
			channel["connected_at"] = info.ConnectedAt
		}

		c.JSON(http.StatusOK, gin.H{
			"authenticated": client.IsAuthenticated(),
			"channel":       channel,
			"chat": gin.H{
				"conversations":         len(client.Chat.Conversations()),
				"currentConversationId": client.Chat.CurrentConversationID(),
				"timeline":              len(client.Chat.Timeline()),
				"hasMore":               client.Chat.HasMore(),
				"loading":               client.Chat.Loading(),
			},
			"online": len(client.Channel.OnlineUsers()),
		})
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.LevelInfo, telemetry.ActionAuditTest, "audit test request_id="+requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
