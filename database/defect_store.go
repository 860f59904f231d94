package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefectStore persists the defect registry.
type DefectStore struct {
	db *gorm.DB
}

func NewDefectStore(db *gorm.DB) *DefectStore {
	return &DefectStore{db: db}
}

// Load returns the stored registry in display order.
func (s *DefectStore) Load(ctx context.Context) ([]registry.Defect, error) {
	var records []models.DefectRecord
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load defect registry: %w", err)
	}
	out := make([]registry.Defect, 0, len(records))
	for _, r := range records {
		out = append(out, r.Defect())
	}
	return out, nil
}

// Replace makes the stored registry equal to reg. Entries missing from reg
// are deleted before the upsert so a re-created (location, type) key does
// not collide with its evicted predecessor.
func (s *DefectStore) Replace(ctx context.Context, reg []registry.Defect) error {
	ids := make([]string, 0, len(reg))
	records := make([]models.DefectRecord, 0, len(reg))
	for i, d := range reg {
		ids = append(ids, d.ID)
		records = append(records, models.NewDefectRecord(d, i))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&models.DefectRecord{}).Error; err != nil {
			return fmt.Errorf("failed to prune defect registry: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"defect_type", "location", "risk_level", "first_detected_date",
				"last_detected_at", "status", "control_system_sign",
				"control_system_source", "drone_sign", "drone_source",
				"ai_confidence", "position", "updated_at",
			}),
		}).Create(&records).Error
		if err != nil {
			return fmt.Errorf("failed to save defect registry: %w", err)
		}
		return nil
	})
}

// WriteStatus implements registry.StatusWriter.
func (s *DefectStore) WriteStatus(ctx context.Context, id string, status registry.Status) error {
	updates := map[string]interface{}{
		"status":      string(status),
		"resolved_at": nil,
		"updated_at":  time.Now(),
	}
	if status == registry.StatusResolved {
		updates["resolved_at"] = time.Now()
	}

	result := s.db.WithContext(ctx).Model(&models.DefectRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update defect status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", registry.ErrDefectNotFound, id)
	}
	return nil
}

// Clear deletes every stored entry.
func (s *DefectStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DefectRecord{}).Error
}
