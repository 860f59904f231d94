package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
)

// ControlSystemTotals summarizes control-system readings by status.
type ControlSystemTotals struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Normal   int `json:"normal"`
}

// DroneTotals summarizes drone captures by media type.
type DroneTotals struct {
	Total  int `json:"total"`
	Videos int `json:"videos"`
	Images int `json:"images"`
}

// OverviewStats is the snapshot plus both subsystem totals.
type OverviewStats struct {
	LeakageStatus detection.Snapshot  `json:"leakage_status"`
	ControlSystem ControlSystemTotals `json:"control_system"`
	Drone         DroneTotals         `json:"drone"`
}

// OverviewStats fetches the latest snapshot and subsystem totals. Failures
// other than ErrUnauthenticated wrap detection.ErrSnapshotUnavailable.
func (c *Client) OverviewStats(ctx context.Context) (OverviewStats, error) {
	var raw struct {
		LeakageStatus json.RawMessage     `json:"leakage_status"`
		ControlSystem ControlSystemTotals `json:"control_system"`
		Drone         DroneTotals         `json:"drone"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/detection/overview-stats", nil, &raw, true); err != nil {
		return OverviewStats{}, snapshotError(err)
	}

	snap, err := detection.Decode(raw.LeakageStatus)
	if err != nil {
		return OverviewStats{}, fmt.Errorf("%w: %w", detection.ErrSnapshotUnavailable, err)
	}
	return OverviewStats{
		LeakageStatus: snap,
		ControlSystem: raw.ControlSystem,
		Drone:         raw.Drone,
	}, nil
}

// LeakageStatus fetches only the latest snapshot.
func (c *Client) LeakageStatus(ctx context.Context) (detection.Snapshot, error) {
	var raw []byte
	if err := c.do(ctx, http.MethodGet, "/api/detection/leakage-status", nil, &raw, true); err != nil {
		return detection.Snapshot{}, snapshotError(err)
	}
	snap, err := detection.Decode(raw)
	if err != nil {
		return detection.Snapshot{}, fmt.Errorf("%w: %w", detection.ErrSnapshotUnavailable, err)
	}
	return snap, nil
}

// Acquirer returns a detection.Acquirer backed by OverviewStats.
func (c *Client) Acquirer() detection.Acquirer {
	return detection.AcquirerFunc(func(ctx context.Context) (detection.Snapshot, error) {
		stats, err := c.OverviewStats(ctx)
		if err != nil {
			return detection.Snapshot{}, err
		}
		return stats.LeakageStatus, nil
	})
}

func snapshotError(err error) error {
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", detection.ErrSnapshotUnavailable, err)
}

// Events returns the backend's registry in display order.
func (c *Client) Events(ctx context.Context, limit int) ([]registry.Defect, error) {
	var resp struct {
		Total  int               `json:"total"`
		Events []registry.Defect `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, withLimit("/api/detection/events", limit), nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// StatusUpdate changes the status of one registry entry. Location and
// DefectType let the backend find the entry when ids were allocated locally.
type StatusUpdate struct {
	ID         string          `json:"-"`
	Status     registry.Status `json:"status"`
	Location   string          `json:"location,omitempty"`
	DefectType risk.DefectType `json:"defect_type,omitempty"`
}

// UpdateStatus persists an operator status change.
func (c *Client) UpdateStatus(ctx context.Context, u StatusUpdate) (registry.Defect, error) {
	var d registry.Defect
	path := "/api/detection/events/" + url.PathEscape(u.ID) + "/status"
	err := c.do(ctx, http.MethodPatch, path, u, &d, true)
	return d, err
}

// SimulationResult is returned by SimulateDetection.
type SimulationResult struct {
	Message       string             `json:"message"`
	LeakageStatus detection.Snapshot `json:"leakage_status"`
	EventsCreated int                `json:"events_created"`
}

// SimulateDetection asks the backend to generate and reconcile a snapshot.
func (c *Client) SimulateDetection(ctx context.Context) (SimulationResult, error) {
	var r SimulationResult
	err := c.do(ctx, http.MethodPost, "/api/detection/simulate-detection", nil, &r, true)
	return r, err
}
