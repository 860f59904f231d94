// Package natsserver provides the embedded NATS server that carries registry
// events between the monitor and the live feed.
package natsserver

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// EmbeddedNATS wraps an embedded NATS server with a client connection
type EmbeddedNATS struct {
	server          *server.Server
	conn            *nats.Conn
	port            int
	eventsPublished uint64
	eventsDropped   uint64
}

// Config holds configuration for the embedded NATS server
type Config struct {
	Host       string
	Port       int
	MaxPayload int32 // Max message size in bytes
	MaxPending int64 // Max pending bytes per slow consumer
}

// DefaultConfig returns defaults sized for registry events
func DefaultConfig() Config {
	return Config{
		Host:       "127.0.0.1",
		Port:       4233,
		MaxPayload: 1024 * 1024,
		MaxPending: 16 * 1024 * 1024,
	}
}

// New creates and starts an embedded NATS server
func New(cfg Config) (*EmbeddedNATS, error) {
	def := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = def.MaxPayload
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = def.MaxPending
	}

	opts := &server.Options{
		Host:          cfg.Host,
		Port:          cfg.Port,
		NoLog:         true,
		NoSigs:        true,
		MaxPayload:    cfg.MaxPayload,
		WriteDeadline: 10 * time.Second,
		MaxPending:    cfg.MaxPending,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready after 5 seconds")
	}

	nc, err := nats.Connect(
		ns.ClientURL(),
		nats.Name("pipewatch-internal"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	port := cfg.Port
	if tcp, ok := ns.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	logging.New("nats").Info("📡 Embedded NATS server started", "url", ns.ClientURL())

	return &EmbeddedNATS{
		server: ns,
		conn:   nc,
		port:   port,
	}, nil
}

// Publish publishes a message to a subject
func (e *EmbeddedNATS) Publish(subject string, data []byte) error {
	if err := e.conn.Publish(subject, data); err != nil {
		atomic.AddUint64(&e.eventsDropped, 1)
		return err
	}
	atomic.AddUint64(&e.eventsPublished, 1)
	return nil
}

// Conn returns the underlying NATS connection
func (e *EmbeddedNATS) Conn() *nats.Conn {
	return e.conn
}

// Address returns the NATS server address
func (e *EmbeddedNATS) Address() string {
	return e.server.ClientURL()
}

// Port returns the NATS server port
func (e *EmbeddedNATS) Port() int {
	return e.port
}

// Stats holds NATS server statistics
type Stats struct {
	Clients         int    `json:"clients"`
	Subscriptions   uint32 `json:"subscriptions"`
	EventsPublished uint64 `json:"eventsPublished"`
	EventsDropped   uint64 `json:"eventsDropped"`
	InMsgs          int64  `json:"inMsgs"`
	OutMsgs         int64  `json:"outMsgs"`
	SlowConsumers   int64  `json:"slowConsumers"`
}

// GetStats returns current server statistics
func (e *EmbeddedNATS) GetStats() Stats {
	varz, _ := e.server.Varz(nil)
	stats := Stats{
		Clients:         e.server.NumClients(),
		Subscriptions:   e.server.NumSubscriptions(),
		EventsPublished: atomic.LoadUint64(&e.eventsPublished),
		EventsDropped:   atomic.LoadUint64(&e.eventsDropped),
	}
	if varz != nil {
		stats.InMsgs = varz.InMsgs
		stats.OutMsgs = varz.OutMsgs
		stats.SlowConsumers = varz.SlowConsumers
	}
	return stats
}

// Shutdown gracefully shuts down the NATS server
func (e *EmbeddedNATS) Shutdown() {
	if e.conn != nil {
		e.conn.Drain()
		e.conn.Close()
	}
	if e.server != nil {
		e.server.Shutdown()
	}
	logging.New("nats").Info("📡 NATS server shut down")
}
