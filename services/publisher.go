// Package services provides the monitoring, feed, sample-data, chat and
// telemetry services behind the HTTP API.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/irisdrone/pipewatch/internal/registry"
)

// NATS subjects carrying registry events.
const (
	SubjectRegistryUpdated = "registry.updated"
	SubjectSnapshot        = "detections.snapshot"
)

// Publisher is satisfied by *nats.Conn and *natsserver.EmbeddedNATS.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the envelope of every message published on the bus.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	At          time.Time       `json:"at"`
	Data        json.RawMessage `json:"data"`
}

// RegistryPayload is the data of a registry.updated event.
type RegistryPayload struct {
	Kind    registry.UpdateKind `json:"kind"`
	Total   int                 `json:"total"`
	Defects []registry.Defect   `json:"defects"`
}

// EventPublisher turns registry updates into bus events.
type EventPublisher struct {
	pub Publisher
	log *slog.Logger
}

func NewEventPublisher(pub Publisher) *EventPublisher {
	return &EventPublisher{pub: pub, log: logging.New("publisher")}
}

// PublishUpdate publishes registry.updated for every update and
// detections.snapshot for reconciliations.
func (p *EventPublisher) PublishUpdate(u registry.Update) error {
	payload := RegistryPayload{Kind: u.Kind, Total: len(u.Defects), Defects: u.Defects}
	if err := p.publish(SubjectRegistryUpdated, u.Fingerprint, u.At, payload); err != nil {
		return err
	}
	if u.Kind != registry.UpdateReconciled {
		return nil
	}
	return p.publish(SubjectSnapshot, u.Fingerprint, u.At, u.Snapshot.Normalize())
}

func (p *EventPublisher) publish(subject, fingerprint string, at time.Time, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", subject, err)
	}
	evt := Event{
		ID:          uuid.NewString(),
		Type:        subject,
		Fingerprint: fingerprint,
		At:          at,
		Data:        raw,
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", subject, err)
	}
	if err := p.pub.Publish(subject, msg); err != nil {
		p.log.Warn("⚠️ Failed to publish event", "subject", subject, "error", err)
		return err
	}
	return nil
}
