package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/nats-io/nats.go"
)

// Feed message types sent to clients.
const (
	FeedTypeRegistry = "registry"
	FeedTypeSnapshot = "snapshot"
)

// FeedHub relays registry events from NATS to WebSocket clients.
type FeedHub struct {
	natsConn *nats.Conn
	subs     []*nats.Subscription
	log      *slog.Logger

	// WebSocket connections
	clients   map[*FeedClient]bool
	clientsMu sync.RWMutex

	register   chan *FeedClient
	unregister chan *FeedClient
	done       chan struct{}

	// last message per type, replayed to new clients
	last   map[string][]byte
	lastMu sync.RWMutex
}

// FeedClient represents a WebSocket client watching the registry
type FeedClient struct {
	hub        *FeedHub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	remoteAddr string
}

// FeedMessage is a message sent to/from clients
type FeedMessage struct {
	Type string          `json:"type"` // registry, snapshot, ping, sync
	Data json.RawMessage `json:"data,omitempty"`
}

// NewFeedHub creates a new feed hub
func NewFeedHub(natsConn *nats.Conn) *FeedHub {
	return &FeedHub{
		natsConn:   natsConn,
		log:        logging.New("feedhub"),
		clients:    make(map[*FeedClient]bool),
		register:   make(chan *FeedClient),
		unregister: make(chan *FeedClient),
		done:       make(chan struct{}),
		last:       make(map[string][]byte),
	}
}

// Subscribe attaches the hub to the registry subjects.
func (h *FeedHub) Subscribe() error {
	routes := map[string]string{
		SubjectRegistryUpdated: FeedTypeRegistry,
		SubjectSnapshot:        FeedTypeSnapshot,
	}
	for subject, feedType := range routes {
		feedType := feedType
		sub, err := h.natsConn.Subscribe(subject, func(msg *nats.Msg) {
			h.Broadcast(feedType, msg.Data)
		})
		if err != nil {
			h.unsubscribeAll()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		h.subs = append(h.subs, sub)
	}
	return nil
}

func (h *FeedHub) unsubscribeAll() {
	for _, sub := range h.subs {
		_ = sub.Unsubscribe()
	}
	h.subs = nil
}

// Register adds a client to the hub. It reports false once the hub stopped.
func (h *FeedHub) Register(client *FeedClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *FeedHub) unregisterClient(client *FeedClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Run starts the hub's main loop
func (h *FeedHub) Run(ctx context.Context) {
	h.log.Info("📺 Feed hub started")
	defer h.unsubscribeAll()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			h.log.Info("📺 Feed hub stopped")
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			h.replay(client)
			h.log.Info("📺 Client connected", "remote", client.remoteAddr, "user", client.userID)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			h.log.Info("📺 Client disconnected", "remote", client.remoteAddr)
		}
	}
}

// Broadcast wraps an event and sends it to every client. Slow clients miss
// the message rather than block the hub.
func (h *FeedHub) Broadcast(feedType string, data []byte) {
	msg, err := json.Marshal(FeedMessage{Type: feedType, Data: data})
	if err != nil {
		h.log.Warn("⚠️ Failed to encode feed message", "error", err)
		return
	}

	h.lastMu.Lock()
	h.last[feedType] = msg
	h.lastMu.Unlock()

	h.clientsMu.RLock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Client buffer full, skip
		}
	}
	h.clientsMu.RUnlock()
}

// replay sends the latest registry and snapshot messages to one client.
func (h *FeedHub) replay(client *FeedClient) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if !h.clients[client] {
		return
	}
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	for _, feedType := range []string{FeedTypeRegistry, FeedTypeSnapshot} {
		msg, ok := h.last[feedType]
		if !ok {
			continue
		}
		select {
		case client.send <- msg:
		default:
		}
	}
}

// sendTo queues msg for one registered client.
func (h *FeedHub) sendTo(client *FeedClient, msg []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- msg:
	default:
	}
}

// Stats returns hub statistics
type HubStats struct {
	Clients       int  `json:"clients"`
	Subscriptions int  `json:"subscriptions"`
	HasRegistry   bool `json:"hasRegistry"`
}

func (h *FeedHub) Stats() HubStats {
	h.clientsMu.RLock()
	clientCount := len(h.clients)
	h.clientsMu.RUnlock()

	h.lastMu.RLock()
	_, hasRegistry := h.last[FeedTypeRegistry]
	h.lastMu.RUnlock()

	return HubStats{
		Clients:       clientCount,
		Subscriptions: len(h.subs),
		HasRegistry:   hasRegistry,
	}
}
