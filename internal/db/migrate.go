package db

import (
	"wealthdesk/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Client{},
		&models.Scheme{},
		&models.RiskProfile{},
		&models.Plan{},
		&models.ExecutionLog{},
	)
}
