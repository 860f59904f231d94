package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
)

// ReadingStatus enum
type ReadingStatus string

const (
	ReadingNormal   ReadingStatus = "normal"
	ReadingWarning  ReadingStatus = "warning"
	ReadingCritical ReadingStatus = "critical"
)

// MediaType enum
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// JSONB type for GORM - can handle both objects and arrays
type JSONB struct {
	Data interface{} `json:"-"`
}

// NewJSONB creates a new JSONB from any value
func NewJSONB(v interface{}) JSONB {
	return JSONB{Data: v}
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, &j.Data)
	case string:
		return json.Unmarshal([]byte(v), &j.Data)
	default:
		return fmt.Errorf("unsupported JSONB source %T", value)
	}
}

// Decode re-marshals the stored value into out.
func (j JSONB) Decode(out interface{}) error {
	data, err := j.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// DefectRecord is the persisted form of a registry entry. Position keeps the
// registry's display order across restarts.
type DefectRecord struct {
	ID                  string     `gorm:"primaryKey;column:id" json:"id"`
	DefectType          string     `gorm:"column:defect_type;uniqueIndex:idx_defect_key;not null" json:"defectType"`
	Location            string     `gorm:"column:location;uniqueIndex:idx_defect_key;not null" json:"location"`
	RiskLevel           string     `gorm:"column:risk_level" json:"riskLevel"`
	FirstDetectedDate   string     `gorm:"column:first_detected_date" json:"firstDetectedDate"`
	LastDetectedAt      *time.Time `gorm:"column:last_detected_at;index" json:"lastDetectedAt,omitempty"`
	Status              string     `gorm:"column:status;default:pending;index" json:"status"`
	ControlSystemSign   string     `gorm:"column:control_system_sign" json:"controlSystemSign"`
	ControlSystemSource string     `gorm:"column:control_system_source" json:"controlSystemSource"`
	DroneSign           string     `gorm:"column:drone_sign" json:"droneSign"`
	DroneSource         string     `gorm:"column:drone_source" json:"droneSource"`
	AIConfidence        int        `gorm:"column:ai_confidence" json:"aiConfidence"`
	Position            int        `gorm:"column:position" json:"position"`
	ResolvedAt          *time.Time `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (DefectRecord) TableName() string {
	return "defect_registry"
}

// NewDefectRecord converts a registry entry at the given display position.
func NewDefectRecord(d registry.Defect, position int) DefectRecord {
	return DefectRecord{
		ID:                  d.ID,
		DefectType:          string(d.DefectType),
		Location:            d.Location,
		RiskLevel:           string(d.RiskLevel),
		FirstDetectedDate:   d.FirstDetectedDate,
		LastDetectedAt:      d.LastDetectedAt,
		Status:              string(d.Status),
		ControlSystemSign:   d.ControlSystemSign,
		ControlSystemSource: d.ControlSystemSource,
		DroneSign:           d.DroneSign,
		DroneSource:         d.DroneSource,
		AIConfidence:        d.AIConfidence,
		Position:            position,
	}
}

// Defect converts the record back into a registry entry. Risk display fields
// are recomputed from the defect type.
func (r DefectRecord) Defect() registry.Defect {
	dt := risk.DefectType(r.DefectType)
	c := risk.Classify(dt)
	d := registry.Defect{
		ID:                  r.ID,
		DefectType:          dt,
		Location:            r.Location,
		RiskLevel:           c.Level,
		RiskLabel:           c.Label,
		RiskIcon:            c.Icon,
		FirstDetectedDate:   r.FirstDetectedDate,
		Status:              registry.Status(r.Status),
		ControlSystemSign:   r.ControlSystemSign,
		ControlSystemSource: r.ControlSystemSource,
		DroneSign:           r.DroneSign,
		DroneSource:         r.DroneSource,
		AIConfidence:        r.AIConfidence,
	}
	if r.LastDetectedAt != nil {
		t := *r.LastDetectedAt
		d.LastDetectedAt = &t
	}
	return d
}

// ControlSystemReading model - one SCADA sensor sample
type ControlSystemReading struct {
	ID              int64         `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Timestamp       time.Time     `gorm:"column:timestamp;index" json:"timestamp"`
	Location        string        `gorm:"column:location;index" json:"location"`
	SensorType      string        `gorm:"column:sensor_type" json:"sensor_type"`
	SensorID        string        `gorm:"column:sensor_id" json:"sensor_id"`
	ReadingValue    float64       `gorm:"column:reading_value" json:"reading_value"`
	ReadingUnit     string        `gorm:"column:reading_unit" json:"reading_unit"`
	Status          ReadingStatus `gorm:"column:status;default:normal;index" json:"status"`
	AnomalyDetected bool          `gorm:"column:anomaly_detected" json:"anomaly_detected"`
	AnomalyType     *string       `gorm:"column:anomaly_type" json:"anomaly_type"`
	Notes           *string       `gorm:"column:notes" json:"notes"`
}

func (ControlSystemReading) TableName() string {
	return "control_system_data"
}

// DroneCapture model - one drone image or video with its AI assessment
type DroneCapture struct {
	ID              int64         `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Timestamp       time.Time     `gorm:"column:timestamp;index" json:"timestamp"`
	Location        string        `gorm:"column:location;index" json:"location"`
	SensorType      string        `gorm:"column:sensor_type" json:"sensor_type"`
	MediaType       MediaType     `gorm:"column:media_type;index" json:"media_type"`
	MediaPath       string        `gorm:"column:media_path" json:"media_path"`
	Status          ReadingStatus `gorm:"column:status;default:normal;index" json:"status"`
	AnomalyDetected bool          `gorm:"column:anomaly_detected" json:"anomaly_detected"`
	AnomalyType     *string       `gorm:"column:anomaly_type" json:"anomaly_type"`
	AIConfidence    *float64      `gorm:"column:ai_confidence" json:"ai_confidence"`
	Notes           *string       `gorm:"column:notes" json:"notes"`
}

func (DroneCapture) TableName() string {
	return "drone_data"
}

// SnapshotRecord keeps every reconciled detection snapshot.
type SnapshotRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Fingerprint string    `gorm:"column:fingerprint;index" json:"fingerprint"`
	TotalCount  int       `gorm:"column:total_leakages" json:"totalLeakages"`
	Data        JSONB     `gorm:"type:jsonb;column:data" json:"data"`
	CreatedAt   time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP;index" json:"createdAt"`
}

func (SnapshotRecord) TableName() string {
	return "detection_snapshots"
}

// NewSnapshotRecord wraps a snapshot for storage.
func NewSnapshotRecord(s detection.Snapshot, fingerprint string, at time.Time) SnapshotRecord {
	s = s.Normalize()
	return SnapshotRecord{
		Fingerprint: fingerprint,
		TotalCount:  s.TotalCount,
		Data:        NewJSONB(s),
		CreatedAt:   at,
	}
}

// Snapshot decodes the stored snapshot.
func (r SnapshotRecord) Snapshot() (detection.Snapshot, error) {
	var s detection.Snapshot
	if err := r.Data.Decode(&s); err != nil {
		return detection.Snapshot{}, err
	}
	return s.Normalize(), nil
}
