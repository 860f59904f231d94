package database

import (
	"fmt"
	"log/slog"

	"github.com/irisdrone/pipewatch/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection
func Connect(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	var err error
	DB, err = Open(databaseURL, logger.Info)
	if err != nil {
		return err
	}

	slog.Info("✅ Database connected successfully")

	// Auto-migrate models
	if err := AutoMigrate(DB); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	return nil
}

// Open returns a gorm handle without touching the DB global.
func Open(databaseURL string, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.DefectRecord{},
		&models.ControlSystemReading{},
		&models.DroneCapture{},
		&models.SnapshotRecord{},
	)
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
