package repositories

import (
	"fmt"

	"task-management-api/internal/models"

	"gorm.io/gorm"
)

// Migrate creates or updates the tasks, tags and task_tags tables and their
// indexes. It is safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Task{}, "Tags", &models.TaskTag{}); err != nil {
		return fmt.Errorf("failed to set up task_tags join table: %w", err)
	}
	if err := db.AutoMigrate(&models.Tag{}, &models.Task{}, &models.TaskTag{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
