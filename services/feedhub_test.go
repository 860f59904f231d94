package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/natsserver"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*FeedHub, *natsserver.EmbeddedNATS, string) {
	t.Helper()
	ns, err := natsserver.New(natsserver.Config{Port: server.RANDOM_PORT})
	require.NoError(t, err)
	t.Cleanup(ns.Shutdown)

	hub := NewFeedHub(ns.Conn())
	require.NoError(t, hub.Subscribe())
	require.NoError(t, ns.Conn().Flush())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewFeedClient(hub, conn, "tester", r.RemoteAddr)
		if !hub.Register(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return hub, ns, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFeed(t *testing.T, conn *websocket.Conn) FeedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg FeedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestFeedHub_RelaysRegistryUpdates(t *testing.T) {
	hub, ns, url := startHub(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Stats().Clients == 1 }, 2*time.Second, 10*time.Millisecond)

	pub := NewEventPublisher(ns)
	require.NoError(t, pub.PublishUpdate(registry.Update{Kind: registry.UpdateStatus, Defects: registry.Seed(), At: time.Now()}))

	msg := readFeed(t, conn)
	assert.Equal(t, FeedTypeRegistry, msg.Type)
	var evt Event
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	assert.Equal(t, SubjectRegistryUpdated, evt.Type)
}

func TestFeedHub_ReplaysLatestOnConnect(t *testing.T) {
	hub, _, url := startHub(t)
	hub.Broadcast(FeedTypeRegistry, []byte(`{"id":"evt-1"}`))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readFeed(t, conn)
	assert.Equal(t, FeedTypeRegistry, msg.Type)
	assert.JSONEq(t, `{"id":"evt-1"}`, string(msg.Data))
	assert.True(t, hub.Stats().HasRegistry)
}

func TestFeedClient_PingAndUnknown(t *testing.T) {
	_, _, url := startHub(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(FeedMessage{Type: "ping"}))
	assert.Equal(t, "pong", readFeed(t, conn).Type)

	require.NoError(t, conn.WriteJSON(FeedMessage{Type: "subscribe"}))
	assert.Equal(t, "error", readFeed(t, conn).Type)
}
