package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRefreshResult(t *testing.T) {
	assert.Equal(t, "ok", RefreshResult(nil))
	assert.Equal(t, "in_progress", RefreshResult(registry.ErrRefreshInProgress))
	assert.Equal(t, "discarded", RefreshResult(fmt.Errorf("%w: closed", registry.ErrRefreshDiscarded)))
	assert.Equal(t, "unavailable", RefreshResult(fmt.Errorf("%w: 502", detection.ErrSnapshotUnavailable)))
	assert.Equal(t, "error", RefreshResult(errors.New("boom")))
}

func TestObserveRefresh(t *testing.T) {
	before := testutil.ToFloat64(refreshTotal.WithLabelValues("unavailable"))

	ObserveRefresh(detection.ErrSnapshotUnavailable, time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(refreshTotal.WithLabelValues("unavailable")))
}

func TestObserveUpdate(t *testing.T) {
	now := time.Now()
	snap := detection.NewSnapshot(
		[]detection.RawDetection{{DefectType: risk.MajorSuddenLeak, Location: "Section A-B"}},
		[]detection.RawDetection{{DefectType: risk.MajorSuddenLeak, Location: "Section A-B"}},
		1,
	)
	before := testutil.ToFloat64(detectionsTotal.WithLabelValues("drone"))

	ObserveUpdate(registry.Update{
		Kind:     registry.UpdateReconciled,
		Snapshot: snap,
		Defects: []registry.Defect{
			{ID: "DEF-100", Status: registry.StatusPending, LastDetectedAt: &now},
			{ID: "DEF-001", Status: registry.StatusResolved},
			{ID: "DEF-002", Status: registry.StatusResolved},
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(activeEntries))
	assert.Equal(t, 2.0, testutil.ToFloat64(registryEntries.WithLabelValues("resolved")))
	assert.Equal(t, 0.0, testutil.ToFloat64(registryEntries.WithLabelValues("progress")))
	assert.Equal(t, before+1, testutil.ToFloat64(detectionsTotal.WithLabelValues("drone")))
}
