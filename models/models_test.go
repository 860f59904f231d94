package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefectRecord_RoundTrip(t *testing.T) {
	seen := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	d := registry.Defect{
		ID:                  "DEF-104",
		DefectType:          risk.PoorPipeSupport,
		Location:            "Branch Line",
		RiskLevel:           risk.Warning,
		RiskLabel:           "Warning",
		RiskIcon:            "alert-triangle",
		FirstDetectedDate:   "2025-02-01",
		LastDetectedAt:      &seen,
		Status:              registry.StatusInProgress,
		ControlSystemSign:   "Abnormal vibration",
		ControlSystemSource: "Seismometer",
		DroneSign:           "Pipe sagging",
		DroneSource:         "Visible spectrum camera",
		AIConfidence:        91,
	}

	rec := NewDefectRecord(d, 3)

	assert.Equal(t, 3, rec.Position)
	assert.Equal(t, "Poor Pipe Support", rec.DefectType)
	if diff := cmp.Diff(d, rec.Defect()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDefectRecord_RecomputesRisk(t *testing.T) {
	rec := DefectRecord{ID: "DEF-001", DefectType: string(risk.MajorSuddenLeak), RiskLevel: "low"}

	d := rec.Defect()

	assert.Equal(t, risk.Critical, d.RiskLevel)
	assert.Equal(t, "Critical", d.RiskLabel)
	assert.False(t, d.Active())
}

func TestJSONB_Scan(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"a": 1}`)))
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, j.Data)

	require.NoError(t, j.Scan(`[1, 2]`))
	assert.Equal(t, []interface{}{float64(1), float64(2)}, j.Data)

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j.Data)

	assert.Error(t, j.Scan(42))
}

func TestSnapshotRecord_Snapshot(t *testing.T) {
	snap := detection.NewSnapshot(
		[]detection.RawDetection{{DefectType: risk.CorrosionErosion, Sign: "Gradual pressure loss", Source: "PT", Location: "Section B-C"}},
		[]detection.RawDetection{{DefectType: risk.CorrosionErosion, Sign: "Visible rust", Source: "Visible spectrum camera", Location: "Section B-C"}},
		1,
	)

	rec := NewSnapshotRecord(snap, "abc", time.Now())
	// simulate a database round trip
	raw, err := rec.Data.Value()
	require.NoError(t, err)
	var stored SnapshotRecord
	require.NoError(t, stored.Data.Scan(raw))

	got, err := stored.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalCount)
	if diff := cmp.Diff(snap.Normalize(), got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
