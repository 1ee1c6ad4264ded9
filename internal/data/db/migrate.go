package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/lessongen/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Lesson{}); err != nil {
		return fmt.Errorf("automigrate lesson: %w", err)
	}
	return nil
}
