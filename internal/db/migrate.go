package db

import (
	"fmt"

	"github.com/floreteng/bundld/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema for all persisted entities.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.AppRule{},
		&models.ExemptionRule{},
		&models.CapturedNotification{},
		&models.Schedule{},
		&models.Setting{},
		&models.Admin{},
	)
}
