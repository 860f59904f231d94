package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irisdrone/pipewatch/database"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/irisdrone/pipewatch/services"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDataLimit  = 100
	defaultEventLimit = registry.MaxRegistrySize
)

// StatusRequest is the body of PATCH /events/:id/status. Location and
// DefectType identify the entry when the id came from another session.
type StatusRequest struct {
	Status     string `json:"status" binding:"required,defectstatus"`
	Location   string `json:"location"`
	DefectType string `json:"defect_type"`
}

// ensureSamples generates the default datasets when both are empty.
func (h *Handler) ensureSamples(ctx context.Context) error {
	cs, err := h.Readings.ControlSystemSummary(ctx)
	if err != nil {
		return err
	}
	ds, err := h.Readings.DroneSummary(ctx)
	if err != nil {
		return err
	}
	if cs.Total > 0 || ds.Total > 0 || h.Samples == nil {
		return nil
	}
	_, _, err = h.Samples.Regenerate(ctx, h.Readings, services.DefaultControlSystemCount, services.DefaultDroneCount)
	return err
}

// GetLeakageStatus refreshes the registry and returns the snapshot.
func (h *Handler) GetLeakageStatus(c *gin.Context) {
	snap, err := h.Monitor.Poll(c.Request.Context())
	if err != nil {
		h.snapshotError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) snapshotError(c *gin.Context, err error) {
	h.log.Warn("⚠️ Detection refresh failed", "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, detection.ErrSnapshotUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": "Failed to fetch leakage status"})
}

// GetOverviewStats refreshes the registry and returns the snapshot with both
// subsystem totals.
func (h *Handler) GetOverviewStats(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.ensureSamples(ctx); err != nil {
		h.log.Error("❌ Failed to prepare sample data", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sensor data"})
		return
	}

	var (
		snap detection.Snapshot
		cs   database.ControlSystemSummary
		ds   database.DroneSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = h.Monitor.Poll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cs, err = h.Readings.ControlSystemSummary(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ds, err = h.Readings.DroneSummary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.snapshotError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leakage_status": snap,
		"control_system": cs,
		"drone":          ds,
	})
}

// GetControlSystemSummary returns control-system totals and readings.
func (h *Handler) GetControlSystemSummary(c *gin.Context) {
	h.controlSystem(c, 0, true)
}

// GetControlSystemData returns up to limit control-system readings.
func (h *Handler) GetControlSystemData(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultDataLimit)
	if !ok {
		return
	}
	h.controlSystem(c, limit, false)
}

func (h *Handler) controlSystem(c *gin.Context, limit int, summary bool) {
	ctx := c.Request.Context()
	if err := h.ensureSamples(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load control system data"})
		return
	}
	sum, err := h.Readings.ControlSystemSummary(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load control system data"})
		return
	}
	rows, err := h.Readings.ControlSystem(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load control system data"})
		return
	}

	resp := gin.H{"total": sum.Total, "data": rows}
	if summary {
		resp["critical"] = sum.Critical
		resp["warning"] = sum.Warning
		resp["normal"] = sum.Normal
	}
	c.JSON(http.StatusOK, resp)
}

// GetDroneSummary returns drone totals and captures.
func (h *Handler) GetDroneSummary(c *gin.Context) {
	h.drone(c, 0, true)
}

// GetDroneData returns up to limit drone captures.
func (h *Handler) GetDroneData(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultDataLimit)
	if !ok {
		return
	}
	h.drone(c, limit, false)
}

func (h *Handler) drone(c *gin.Context, limit int, summary bool) {
	ctx := c.Request.Context()
	if err := h.ensureSamples(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drone data"})
		return
	}
	sum, err := h.Readings.DroneSummary(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drone data"})
		return
	}
	rows, err := h.Readings.Drone(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drone data"})
		return
	}

	resp := gin.H{"total": sum.Total, "data": rows}
	if summary {
		resp["videos"] = sum.Videos
		resp["images"] = sum.Images
	}
	c.JSON(http.StatusOK, resp)
}

// GetEvents returns the defect registry in display order.
func (h *Handler) GetEvents(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultEventLimit)
	if !ok {
		return
	}
	events := h.Monitor.Defects(limit)
	c.JSON(http.StatusOK, gin.H{
		"total":  len(events),
		"events": events,
	})
}

// UpdateEventStatus applies an operator status change.
func (h *Handler) UpdateEventStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: must be one of pending, progress, resolved"})
		return
	}
	status, err := registry.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.Monitor.UpdateStatus(c.Request.Context(), services.StatusChange{
		ID:         c.Param("id"),
		Location:   req.Location,
		DefectType: risk.DefectType(req.DefectType),
		Status:     status,
	})
	switch {
	case errors.Is(err, registry.ErrDefectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Defect not found"})
	case errors.Is(err, registry.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.log.Error("❌ Failed to update defect status", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
	default:
		c.JSON(http.StatusOK, d)
	}
}

// RegenerateData replaces both sample datasets.
func (h *Handler) RegenerateData(c *gin.Context) {
	controlCount, ok := queryInt(c, "control_system_count", services.DefaultControlSystemCount)
	if !ok {
		return
	}
	droneCount, ok := queryInt(c, "drone_count", services.DefaultDroneCount)
	if !ok {
		return
	}
	if h.Samples == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sample data generator not configured"})
		return
	}

	cs, ds, err := h.Samples.Regenerate(c.Request.Context(), h.Readings, controlCount, droneCount)
	if err != nil {
		h.log.Error("❌ Failed to regenerate data", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to regenerate data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":                "Data regenerated successfully",
		"control_system_records": cs,
		"drone_records":          ds,
	})
}

// SimulateDetection runs one refresh and reports the corroborated entries.
func (h *Handler) SimulateDetection(c *gin.Context) {
	snap, created, err := h.Monitor.Simulate(c.Request.Context())
	if errors.Is(err, registry.ErrRefreshInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Detection refresh already in progress"})
		return
	}
	if err != nil {
		h.snapshotError(c, err)
		return
	}
	msg := "New detection simulated successfully"
	if snap.TotalCount == 0 {
		msg = "No leakages detected in simulation"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        msg,
		"leakage_status": snap,
		"events_created": created,
	})
}

// ExportControlSystem streams the control-system dataset as CSV.
func (h *Handler) ExportControlSystem(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.ensureSamples(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load control system data"})
		return
	}
	rows, err := h.Readings.ControlSystem(ctx, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load control system data"})
		return
	}

	header := []string{"timestamp", "location", "sensor_type", "sensor_id", "reading_value", "reading_unit", "status", "anomaly_detected", "anomaly_type"}
	writeCSV(c, "control_system_data.csv", header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.Timestamp.Format(time.RFC3339),
			r.Location,
			r.SensorType,
			r.SensorID,
			strconv.FormatFloat(r.ReadingValue, 'f', -1, 64),
			r.ReadingUnit,
			string(r.Status),
			strconv.FormatBool(r.AnomalyDetected),
			deref(r.AnomalyType),
		}
	})
}

// ExportDrone streams the drone dataset as CSV.
func (h *Handler) ExportDrone(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.ensureSamples(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drone data"})
		return
	}
	rows, err := h.Readings.Drone(ctx, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drone data"})
		return
	}

	header := []string{"timestamp", "location", "sensor_type", "media_type", "media_path", "status", "anomaly_detected", "anomaly_type", "ai_confidence"}
	writeCSV(c, "drone_data.csv", header, len(rows), func(i int) []string {
		r := rows[i]
		confidence := ""
		if r.AIConfidence != nil {
			confidence = strconv.FormatFloat(*r.AIConfidence, 'f', 2, 64)
		}
		return []string{
			r.Timestamp.Format(time.RFC3339),
			r.Location,
			r.SensorType,
			string(r.MediaType),
			r.MediaPath,
			string(r.Status),
			strconv.FormatBool(r.AnomalyDetected),
			deref(r.AnomalyType),
			confidence,
		}
	})
}

func writeCSV(c *gin.Context, filename string, header []string, n int, row func(int) []string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(header)
	for i := 0; i < n; i++ {
		_ = w.Write(row(i))
	}
	w.Flush()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
