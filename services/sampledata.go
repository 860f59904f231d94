package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/irisdrone/pipewatch/internal/catalog"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/irisdrone/pipewatch/models"
)

// Default dataset sizes.
const (
	DefaultControlSystemCount = 145
	DefaultDroneCount         = 2847
)

const (
	anomalyRate       = 0.1
	criticalRate      = 0.3
	sampleWindowMins  = 1440
	sensorsPerSection = 5
)

type sensorRange struct {
	min, max float64
	unit     string
	places   int
}

var controlSensors = []string{"PT", "FT", "TT", "Seismometer"}

var sensorRanges = map[string]sensorRange{
	"PT":          {min: 40, max: 50, unit: "PSI", places: 2},
	"FT":          {min: 1000, max: 1500, unit: "m³/h", places: 2},
	"TT":          {min: 15, max: 25, unit: "°C", places: 2},
	"Seismometer": {min: 0, max: 0.5, unit: "mm/s", places: 3},
}

var droneSensors = []string{"Visible spectrum camera", "Thermal imaging camera", "Spectroscopic sensor"}

var mediaTypes = []models.MediaType{models.MediaImage, models.MediaVideo}

// SampleGenerator produces synthetic control-system readings and drone
// captures over the last 24 hours.
type SampleGenerator struct {
	rnd detection.RandSource
	cat *catalog.Catalog
	now func() time.Time
}

func NewSampleGenerator(rnd detection.RandSource, cat *catalog.Catalog) *SampleGenerator {
	if cat == nil {
		cat = catalog.Default()
	}
	return &SampleGenerator{rnd: rnd, cat: cat, now: time.Now}
}

func (g *SampleGenerator) uniform(min, max float64, places int) float64 {
	v := min + g.rnd.Float64()*(max-min)
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (g *SampleGenerator) timestamp(now time.Time) time.Time {
	return now.Add(-time.Duration(g.rnd.IntN(sampleWindowMins+1)) * time.Minute)
}

func (g *SampleGenerator) location() string {
	return g.cat.Locations[g.rnd.IntN(len(g.cat.Locations))]
}

func (g *SampleGenerator) status() (models.ReadingStatus, bool) {
	if g.rnd.Float64() >= anomalyRate {
		return models.ReadingNormal, false
	}
	if g.rnd.Float64() < criticalRate {
		return models.ReadingCritical, true
	}
	return models.ReadingWarning, true
}

// anomalySign picks a defect observable by the subsystem, then one of its
// signs.
func (g *SampleGenerator) anomalySign(signs func(catalog.Defect) []catalog.Signature) *string {
	var candidates []catalog.Defect
	for _, d := range g.cat.Defects {
		if len(signs(d)) > 0 {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	list := signs(candidates[g.rnd.IntN(len(candidates))])
	sign := list[g.rnd.IntN(len(list))].Sign
	return &sign
}

// ControlSystem generates count readings.
func (g *SampleGenerator) ControlSystem(count int) []models.ControlSystemReading {
	now := g.now()
	rows := make([]models.ControlSystemReading, 0, count)
	for i := 0; i < count; i++ {
		ts := g.timestamp(now)
		loc := g.location()
		sensor := controlSensors[g.rnd.IntN(len(controlSensors))]
		r := sensorRanges[sensor]
		value := g.uniform(r.min, r.max, r.places)
		status, anomaly := g.status()

		row := models.ControlSystemReading{
			Timestamp:       ts,
			Location:        loc,
			SensorType:      sensor,
			SensorID:        fmt.Sprintf("%s-%s-%d", sensor, strings.ReplaceAll(loc, " ", "-"), 1+g.rnd.IntN(sensorsPerSection)),
			ReadingValue:    value,
			ReadingUnit:     r.unit,
			Status:          status,
			AnomalyDetected: anomaly,
		}
		if anomaly {
			row.AnomalyType = g.anomalySign(func(d catalog.Defect) []catalog.Signature { return d.ControlSystem })
		}
		rows = append(rows, row)
	}
	return rows
}

// Drone generates count captures.
func (g *SampleGenerator) Drone(count int) []models.DroneCapture {
	now := g.now()
	rows := make([]models.DroneCapture, 0, count)
	for i := 0; i < count; i++ {
		ts := g.timestamp(now)
		loc := g.location()
		sensor := droneSensors[g.rnd.IntN(len(droneSensors))]
		media := mediaTypes[g.rnd.IntN(len(mediaTypes))]
		status, anomaly := g.status()

		row := models.DroneCapture{
			Timestamp:       ts,
			Location:        loc,
			SensorType:      sensor,
			MediaType:       media,
			MediaPath:       fmt.Sprintf("/media/drone/%s/%s_%d.%s", ts.Format("20060102"), strings.ReplaceAll(loc, " ", "_"), i, media),
			Status:          status,
			AnomalyDetected: anomaly,
		}
		if anomaly {
			row.AnomalyType = g.anomalySign(func(d catalog.Defect) []catalog.Signature { return d.Drone })
			confidence := g.uniform(85, 99, 2)
			row.AIConfidence = &confidence
		}
		rows = append(rows, row)
	}
	return rows
}

// SampleStore persists generated datasets. *database.ReadingStore
// implements it.
type SampleStore interface {
	ReplaceControlSystem(ctx context.Context, rows []models.ControlSystemReading) error
	ReplaceDrone(ctx context.Context, rows []models.DroneCapture) error
}

// Regenerate replaces both datasets and returns their sizes.
func (g *SampleGenerator) Regenerate(ctx context.Context, store SampleStore, controlCount, droneCount int) (int, int, error) {
	control := g.ControlSystem(controlCount)
	if err := store.ReplaceControlSystem(ctx, control); err != nil {
		return 0, 0, err
	}
	drone := g.Drone(droneCount)
	if err := store.ReplaceDrone(ctx, drone); err != nil {
		return 0, 0, err
	}
	logging.New("sampledata").Info("🌱 Sample data regenerated",
		"control_system", len(control),
		"drone", len(drone))
	return len(control), len(drone), nil
}
