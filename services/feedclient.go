package services

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024

	// Send buffer size
	sendBufferSize = 64
)

// NewFeedClient creates a new feed client
func NewFeedClient(hub *FeedHub, conn *websocket.Conn, userID, remoteAddr string) *FeedClient {
	return &FeedClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		userID:     userID,
		remoteAddr: remoteAddr,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *FeedClient) ReadPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("⚠️ WebSocket error", "error", err)
			}
			break
		}

		var msg FeedMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Warn("⚠️ Invalid message", "remote", c.remoteAddr, "error", err)
			c.hub.sendTo(c, errorMessage("invalid message"))
			continue
		}

		switch msg.Type {
		case "sync":
			c.hub.replay(c)

		case "ping":
			c.hub.sendTo(c, pongMessage)

		default:
			c.hub.sendTo(c, errorMessage("unknown message type: "+msg.Type))
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *FeedClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var pongMessage = []byte(`{"type":"pong"}`)

func errorMessage(errMsg string) []byte {
	msgBytes, _ := json.Marshal(map[string]string{
		"type":  "error",
		"error": errMsg,
	})
	return msgBytes
}
