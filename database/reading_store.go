package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/irisdrone/pipewatch/models"
	"gorm.io/gorm"
)

const batchSize = 500

// ControlSystemSummary counts control-system readings by status.
type ControlSystemSummary struct {
	Total    int64 `json:"total"`
	Critical int64 `json:"critical"`
	Warning  int64 `json:"warning"`
	Normal   int64 `json:"normal"`
}

// DroneSummary counts drone captures by media type.
type DroneSummary struct {
	Total  int64 `json:"total"`
	Videos int64 `json:"videos"`
	Images int64 `json:"images"`
}

// ReadingStore holds the sample sensor datasets and detection snapshots.
type ReadingStore struct {
	db *gorm.DB
}

func NewReadingStore(db *gorm.DB) *ReadingStore {
	return &ReadingStore{db: db}
}

// ReplaceControlSystem swaps the control-system dataset for rows.
func (s *ReadingStore) ReplaceControlSystem(ctx context.Context, rows []models.ControlSystemReading) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ControlSystemReading{}).Error; err != nil {
			return fmt.Errorf("failed to clear control system data: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, batchSize).Error
	})
}

// ReplaceDrone swaps the drone dataset for rows.
func (s *ReadingStore) ReplaceDrone(ctx context.Context, rows []models.DroneCapture) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DroneCapture{}).Error; err != nil {
			return fmt.Errorf("failed to clear drone data: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, batchSize).Error
	})
}

// ControlSystem returns the newest readings first. limit <= 0 means all.
func (s *ReadingStore) ControlSystem(ctx context.Context, limit int) ([]models.ControlSystemReading, error) {
	var rows []models.ControlSystemReading
	q := s.db.WithContext(ctx).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch control system data: %w", err)
	}
	return rows, nil
}

// Drone returns the newest captures first. limit <= 0 means all.
func (s *ReadingStore) Drone(ctx context.Context, limit int) ([]models.DroneCapture, error) {
	var rows []models.DroneCapture
	q := s.db.WithContext(ctx).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch drone data: %w", err)
	}
	return rows, nil
}

// ControlSystemSummary counts readings by status.
func (s *ReadingStore) ControlSystemSummary(ctx context.Context) (ControlSystemSummary, error) {
	var counts []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.ControlSystemReading{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return ControlSystemSummary{}, fmt.Errorf("failed to summarize control system data: %w", err)
	}

	var sum ControlSystemSummary
	for _, c := range counts {
		sum.Total += c.Count
		switch models.ReadingStatus(c.Status) {
		case models.ReadingCritical:
			sum.Critical = c.Count
		case models.ReadingWarning:
			sum.Warning = c.Count
		}
	}
	sum.Normal = sum.Total - sum.Critical - sum.Warning
	return sum, nil
}

// DroneSummary counts captures by media type.
func (s *ReadingStore) DroneSummary(ctx context.Context) (DroneSummary, error) {
	var sum DroneSummary
	db := s.db.WithContext(ctx).Model(&models.DroneCapture{})
	if err := db.Count(&sum.Total).Error; err != nil {
		return DroneSummary{}, fmt.Errorf("failed to count drone data: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.DroneCapture{}).
		Where("media_type = ?", models.MediaVideo).
		Count(&sum.Videos).Error; err != nil {
		return DroneSummary{}, fmt.Errorf("failed to count drone videos: %w", err)
	}
	sum.Images = sum.Total - sum.Videos
	return sum, nil
}

// SaveSnapshot appends a reconciled snapshot to the history.
func (s *ReadingStore) SaveSnapshot(ctx context.Context, rec models.SnapshotRecord) error {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save detection snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest stored snapshot, or
// gorm.ErrRecordNotFound.
func (s *ReadingStore) LatestSnapshot(ctx context.Context) (models.SnapshotRecord, error) {
	var rec models.SnapshotRecord
	err := s.db.WithContext(ctx).Order("created_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SnapshotRecord{}, err
	}
	if err != nil {
		return models.SnapshotRecord{}, fmt.Errorf("failed to fetch latest snapshot: %w", err)
	}
	return rec, nil
}

// Clear deletes readings, captures and snapshots.
func (s *ReadingStore) Clear(ctx context.Context) error {
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []interface{}{&models.ControlSystemReading{}, &models.DroneCapture{}, &models.SnapshotRecord{}} {
		if err := db.Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}
