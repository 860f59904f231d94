package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/irisdrone/pipewatch/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleRegistryWebSocket streams registry updates to the client.
func (h *Handler) HandleRegistryWebSocket(c *gin.Context) {
	if h.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feed hub not initialized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("⚠️ WebSocket upgrade failed", "error", err)
		return
	}

	client := services.NewFeedClient(h.Hub, conn, c.GetString(usernameKey), c.ClientIP())
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// GetFeedHubStats returns feed hub and event bus statistics
func (h *Handler) GetFeedHubStats(c *gin.Context) {
	if h.Hub == nil {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
		})
		return
	}

	stats := h.Hub.Stats()
	resp := gin.H{
		"enabled":       true,
		"clients":       stats.Clients,
		"subscriptions": stats.Subscriptions,
		"hasRegistry":   stats.HasRegistry,
	}
	if h.Bus != nil {
		resp["bus"] = h.Bus.GetStats()
	}
	c.JSON(http.StatusOK, resp)
}
