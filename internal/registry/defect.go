// Package registry maintains the bounded, ordered registry of pipeline defects
// corroborated by both sensing subsystems.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/irisdrone/pipewatch/internal/risk"
)

// MaxRegistrySize is the number of entries a registry retains.
const MaxRegistrySize = 15

// DateLayout is the format of Defect.FirstDetectedDate.
const DateLayout = time.DateOnly

var (
	ErrDefectNotFound = errors.New("defect not found")
	ErrInvalidStatus  = errors.New("invalid defect status")
)

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "progress"
	StatusResolved   Status = "resolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// ParseStatus accepts the wire value of a status. "inProgress" and
// "in_progress" are accepted as aliases of "progress".
func ParseStatus(s string) (Status, error) {
	switch s {
	case "inProgress", "in_progress":
		return StatusInProgress, nil
	}
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// statusFor is the status assigned on every corroborated detection.
func statusFor(level risk.Level) Status {
	if level == risk.Warning {
		return StatusInProgress
	}
	return StatusPending
}

// Defect is one registry entry. (Location, DefectType) is unique within a
// registry.
type Defect struct {
	ID                  string          `json:"id"`
	DefectType          risk.DefectType `json:"defect_type"`
	Location            string          `json:"location"`
	RiskLevel           risk.Level      `json:"risk_level"`
	RiskLabel           string          `json:"risk_label"`
	RiskIcon            string          `json:"risk_icon"`
	FirstDetectedDate   string          `json:"first_detected_date"`
	LastDetectedAt      *time.Time      `json:"last_detected_at"`
	Status              Status          `json:"status"`
	ControlSystemSign   string          `json:"control_system_sign"`
	ControlSystemSource string          `json:"control_system_source"`
	DroneSign           string          `json:"drone_sign"`
	DroneSource         string          `json:"drone_source"`
	AIConfidence        int             `json:"ai_confidence"`
}

// Active reports whether the defect was corroborated by a reconciliation.
func (d Defect) Active() bool {
	return d.LastDetectedAt != nil
}

func (d *Defect) classify() {
	c := risk.Classify(d.DefectType)
	d.RiskLevel = c.Level
	d.RiskLabel = c.Label
	d.RiskIcon = c.Icon
}

type key struct {
	location   string
	defectType risk.DefectType
}

func keyOf(d Defect) key {
	return key{location: d.Location, defectType: d.DefectType}
}

// Clone returns a copy of ds that shares no memory with it.
func Clone(ds []Defect) []Defect {
	out := make([]Defect, len(ds))
	copy(out, ds)
	for i := range out {
		if out[i].LastDetectedAt != nil {
			t := *out[i].LastDetectedAt
			out[i].LastDetectedAt = &t
		}
	}
	return out
}
