package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	points  []FieldValue
	queries []string
}

func (f *fakeSource) Fields(_ context.Context, query string) ([]FieldValue, error) {
	f.queries = append(f.queries, query)
	return f.points, nil
}

func TestTelemetry_SensorStats(t *testing.T) {
	src := &fakeSource{points: []FieldValue{
		{Field: "inlet_pressure_bar", Value: 2.0},
		{Field: "inlet_pressure_bar", Value: 4.0},
		{Field: "inlet_pressure_bar", Value: int64(6)},
		{Field: "flow_rate_m3_h", Value: 1200.0},
		{Field: "note", Value: "text"},
	}}
	tel := NewTelemetry(src, "pipeline", "sensor_measurements")

	stats, err := tel.SensorStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, FieldStats{Mean: 4, Std: 2, Min: 2, Max: 6, Count: 3}, stats["inlet_pressure_bar"])
	assert.Equal(t, FieldStats{Mean: 1200, Std: 0, Min: 1200, Max: 1200, Count: 1}, stats["flow_rate_m3_h"])
	assert.NotContains(t, stats, "note")
	require.Len(t, src.queries, 1)
	assert.Contains(t, src.queries[0], `from(bucket: "pipeline")`)
	assert.Contains(t, src.queries[0], "range(start: -5m)")
	assert.Contains(t, src.queries[0], `r["_field"] != "health_status"`)
}

func TestTelemetry_SensorContext(t *testing.T) {
	tel := NewTelemetry(&fakeSource{points: []FieldValue{
		{Field: "b_temp", Value: 20.0},
		{Field: "a_pressure", Value: 40.0},
	}}, "b", "m")

	text, err := tel.SensorContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, text, "last 5 minutes")
	assert.Less(t, strings.Index(text, "a_pressure"), strings.Index(text, "b_temp"))

	empty, err := NewTelemetry(&fakeSource{}, "b", "m").SensorContext(context.Background())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTelemetry_MLStatus(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var points []FieldValue
	for i := 0; i < 7; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		points = append(points,
			FieldValue{Time: at, Field: "health_status", Value: "normal"},
			FieldValue{Time: at, Field: "fault_type", Value: "none"})
	}
	tel := NewTelemetry(&fakeSource{points: points}, "b", "m")

	readings, err := tel.MLStatus(context.Background())

	require.NoError(t, err)
	require.Len(t, readings, 5)
	assert.Equal(t, base.Add(6*time.Minute), readings[0].Time)
	assert.Equal(t, "normal", readings[0].HealthStatus)
	assert.Equal(t, "none", readings[0].FaultType)

	text, err := tel.MLStatusContext(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "last 5 readings")
}

