package db

import (
	"collaborative-docs/internal/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.OrganizationMember{},
		&domain.Document{},
	)
	if err != nil {
		return err
	}

	log.Info("Database schema migrated successfully")
	return nil
}
