// Package detection models the readings produced by the two sensing
// subsystems and the strategies that acquire them.
package detection

import (
	"context"
	"errors"

	"github.com/irisdrone/pipewatch/internal/risk"
)

// ErrSnapshotUnavailable is returned when a snapshot could not be acquired.
// Callers keep their current registry when they see it.
var ErrSnapshotUnavailable = errors.New("detection snapshot unavailable")

// RawDetection is a single observation from one subsystem.
type RawDetection struct {
	DefectType risk.DefectType `json:"defect_type"`
	Sign       string          `json:"sign"`
	Source     string          `json:"source"`
	Location   string          `json:"location"`
}

// SubsystemStatus enum
type SubsystemStatus string

const (
	StatusOK       SubsystemStatus = "ok"
	StatusDetected SubsystemStatus = "detected"
)

// SubsystemReading is the latest output of one subsystem.
type SubsystemReading struct {
	Status     SubsystemStatus `json:"status"`
	Detections []RawDetection  `json:"detections"`
}

func newReading(ds []RawDetection) SubsystemReading {
	if len(ds) == 0 {
		return SubsystemReading{Status: StatusOK, Detections: []RawDetection{}}
	}
	return SubsystemReading{Status: StatusDetected, Detections: ds}
}

// Snapshot is one read of both subsystems.
type Snapshot struct {
	ControlSystem SubsystemReading `json:"control_system"`
	Drone         SubsystemReading `json:"drone"`
	TotalCount    int              `json:"total_leakages"`
}

// NewSnapshot builds a snapshot whose subsystem statuses match their
// detections. totalCount is the number of scenarios the producer reported.
func NewSnapshot(control, drone []RawDetection, totalCount int) Snapshot {
	return Snapshot{
		ControlSystem: newReading(control),
		Drone:         newReading(drone),
		TotalCount:    totalCount,
	}
}

// Empty returns a snapshot with nothing detected.
func Empty() Snapshot {
	return NewSnapshot(nil, nil, 0)
}

// Normalize repairs a decoded snapshot so each status agrees with its
// detections.
func (s Snapshot) Normalize() Snapshot {
	return NewSnapshot(s.ControlSystem.Detections, s.Drone.Detections, s.TotalCount)
}

// HasDetections reports whether either subsystem detected anything.
func (s Snapshot) HasDetections() bool {
	return len(s.ControlSystem.Detections) > 0 || len(s.Drone.Detections) > 0
}

// Acquirer produces the latest snapshot.
type Acquirer interface {
	Acquire(ctx context.Context) (Snapshot, error)
}

// AcquirerFunc adapts a function to the Acquirer interface.
type AcquirerFunc func(ctx context.Context) (Snapshot, error)

func (f AcquirerFunc) Acquire(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}
