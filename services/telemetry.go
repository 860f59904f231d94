package services

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const (
	sensorWindowMinutes = 5
	mlStatusLimit       = 5
)

// FieldValue is one point of one field.
type FieldValue struct {
	Time  time.Time
	Field string
	Value interface{}
}

// FieldSource runs a Flux query and flattens the result.
type FieldSource interface {
	Fields(ctx context.Context, query string) ([]FieldValue, error)
}

type influxSource struct {
	queryAPI api.QueryAPI
}

func (s influxSource) Fields(ctx context.Context, query string) ([]FieldValue, error) {
	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("InfluxDB query failed: %w", err)
	}
	defer result.Close()

	var out []FieldValue
	for result.Next() {
		r := result.Record()
		out = append(out, FieldValue{Time: r.Time(), Field: r.Field(), Value: r.Value()})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("error reading InfluxDB results: %w", result.Err())
	}
	return out, nil
}

// FieldStats summarizes one sensor field over the window.
type FieldStats struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// HealthReading is one ML health assessment.
type HealthReading struct {
	Time         time.Time `json:"time"`
	HealthStatus string    `json:"health_status"`
	FaultType    string    `json:"fault_type"`
}

// Telemetry reads live sensor aggregates used as chat context.
type Telemetry struct {
	source      FieldSource
	bucket      string
	measurement string
	close       func()
}

// NewInfluxTelemetry connects to InfluxDB.
func NewInfluxTelemetry(url, token, org, bucket, measurement string) *Telemetry {
	client := influxdb2.NewClient(url, token)
	t := NewTelemetry(influxSource{queryAPI: client.QueryAPI(org)}, bucket, measurement)
	t.close = client.Close
	return t
}

// NewTelemetry reads from an arbitrary source.
func NewTelemetry(source FieldSource, bucket, measurement string) *Telemetry {
	return &Telemetry{source: source, bucket: bucket, measurement: measurement}
}

// Close releases the InfluxDB client.
func (t *Telemetry) Close() {
	if t.close != nil {
		t.close()
	}
}

func (t *Telemetry) sensorQuery() string {
	return fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: -%dm)
		  |> filter(fn: (r) => r["_measurement"] == "%s")
		  |> filter(fn: (r) => r["_field"] != "health_status" and r["_field"] != "fault_type")
	`, t.bucket, sensorWindowMinutes, t.measurement)
}

func (t *Telemetry) mlQuery() string {
	return fmt.Sprintf(`
		from(bucket: "%s")
		  |> range(start: -1h)
		  |> filter(fn: (r) => r["_measurement"] == "%s")
		  |> filter(fn: (r) => r["_field"] == "health_status" or r["_field"] == "fault_type")
	`, t.bucket, t.measurement)
}

// SensorStats aggregates every numeric field over the last five minutes.
func (t *Telemetry) SensorStats(ctx context.Context) (map[string]FieldStats, error) {
	points, err := t.source.Fields(ctx, t.sensorQuery())
	if err != nil {
		return nil, err
	}

	values := make(map[string][]float64)
	for _, p := range points {
		if v, ok := toFloat(p.Value); ok {
			values[p.Field] = append(values[p.Field], v)
		}
	}

	stats := make(map[string]FieldStats, len(values))
	for field, vs := range values {
		stats[field] = summarize(vs)
	}
	return stats, nil
}

// MLStatus returns the latest health assessments, newest first.
func (t *Telemetry) MLStatus(ctx context.Context) ([]HealthReading, error) {
	points, err := t.source.Fields(ctx, t.mlQuery())
	if err != nil {
		return nil, err
	}

	byTime := make(map[time.Time]*HealthReading)
	for _, p := range points {
		r, ok := byTime[p.Time]
		if !ok {
			r = &HealthReading{Time: p.Time}
			byTime[p.Time] = r
		}
		switch p.Field {
		case "health_status":
			r.HealthStatus = fmt.Sprint(p.Value)
		case "fault_type":
			r.FaultType = fmt.Sprint(p.Value)
		}
	}

	out := make([]HealthReading, 0, len(byTime))
	for _, r := range byTime {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b HealthReading) int { return b.Time.Compare(a.Time) })
	if len(out) > mlStatusLimit {
		out = out[:mlStatusLimit]
	}
	return out, nil
}

// SensorContext renders SensorStats for the chat system prompt.
func (t *Telemetry) SensorContext(ctx context.Context) (string, error) {
	stats, err := t.SensorStats(ctx)
	if err != nil {
		return "", err
	}
	if len(stats) == 0 {
		return "", nil
	}

	fields := make([]string, 0, len(stats))
	for f := range stats {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "Live sensor statistics (last %d minutes):\n", sensorWindowMinutes)
	for _, f := range fields {
		s := stats[f]
		fmt.Fprintf(&b, "- %s: mean=%g, std=%g, min=%g, max=%g, count=%d\n", f, s.Mean, s.Std, s.Min, s.Max, s.Count)
	}
	return strings.TrimSpace(b.String()), nil
}

// MLStatusContext renders MLStatus for the chat system prompt.
func (t *Telemetry) MLStatusContext(ctx context.Context) (string, error) {
	readings, err := t.MLStatus(ctx)
	if err != nil {
		return "", err
	}
	if len(readings) == 0 {
		return "", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ML health status (last %d readings):\n", len(readings))
	for _, r := range readings {
		fmt.Fprintf(&b, "- %s: health_status=%s, fault_type=%s\n", r.Time.UTC().Format(time.RFC3339), r.HealthStatus, r.FaultType)
	}
	return strings.TrimSpace(b.String()), nil
}

func summarize(vs []float64) FieldStats {
	s := FieldStats{Count: len(vs), Min: vs[0], Max: vs[0]}
	sum := 0.0
	for _, v := range vs {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	mean := sum / float64(len(vs))
	if len(vs) > 1 {
		sq := 0.0
		for _, v := range vs {
			sq += (v - mean) * (v - mean)
		}
		s.Std = round4(math.Sqrt(sq / float64(len(vs)-1)))
	}
	s.Mean = round4(mean)
	s.Min = round4(s.Min)
	s.Max = round4(s.Max)
	return s
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
