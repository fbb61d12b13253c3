package repositories

import (
	"context"
	"fmt"
	"time"

	"task-management-api/internal/models"

	"gorm.io/gorm"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts the task row and links the already-resolved tags in task.Tags.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("Tags").Create(task).Error; err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return r.linkTags(db, task.ID, task.Tags)
}

// FindActive loads a non-deleted task with its tags. It returns
// gorm.ErrRecordNotFound when the task is missing or soft-deleted.
func (r *TaskRepository) FindActive(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns one page of active tasks matching filter, newest first, and
// the number of matches ignoring pagination. A task matching several of the
// requested tags is counted and returned once.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, int64, error) {
	db := r.db.WithContext(ctx)

	base := func() *gorm.DB {
		q := db.Model(&models.Task{}).Where("tasks.is_deleted = ?", false)
		if filter.Completed != nil {
			q = q.Where("tasks.completed = ?", *filter.Completed)
		}
		if filter.Priority != nil {
			q = q.Where("tasks.priority = ?", *filter.Priority)
		}
		if len(filter.Tags) > 0 {
			tagged := db.Table("task_tags").
				Select("task_tags.task_id").
				Joins("JOIN tags ON tags.id = task_tags.tag_id").
				Where("tags.name IN ?", filter.Tags)
			q = q.Where("tasks.id IN (?)", tagged)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks := make([]models.Task, 0)
	if total == 0 || filter.Offset >= int(total) {
		return tasks, total, nil
	}

	err := base().
		Preload("Tags").
		Order("tasks.created_at DESC").
		Order("tasks.id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// Update applies column updates to an active task and reports whether a row
// matched.
func (r *TaskRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update task: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReplaceTags makes tags the task's complete tag set.
func (r *TaskRepository) ReplaceTags(ctx context.Context, taskID uint, tags []models.Tag) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id = ?", taskID).Delete(&models.TaskTag{}).Error; err != nil {
		return fmt.Errorf("failed to clear task tags: %w", err)
	}
	return r.linkTags(db, taskID, tags)
}

func (r *TaskRepository) linkTags(db *gorm.DB, taskID uint, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	links := make([]models.TaskTag, 0, len(tags))
	for _, tag := range tags {
		links = append(links, models.TaskTag{TaskID: taskID, TagID: tag.ID})
	}
	if err := db.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link task tags: %w", err)
	}
	return nil
}

// SoftDelete flags an active task as deleted. It returns false when no
// active task has that id, so a second delete of the same task is a miss.
func (r *TaskRepository) SoftDelete(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.Update(ctx, id, map[string]interface{}{
		"is_deleted": true,
		"updated_at": at,
	})
}

// PurgeDeleted permanently removes up to limit tasks that were soft-deleted
// before cutoff, together with their tag links. Tags are kept.
func (r *TaskRepository) PurgeDeleted(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&models.Task{}).
			Where("is_deleted = ? AND updated_at < ?", true, cutoff).
			Order("id ASC").
			Limit(limit).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("task_id IN ?", ids).Delete(&models.TaskTag{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ? AND is_deleted = ?", ids, true).Delete(&models.Task{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted tasks: %w", err)
	}
	return purged, nil
}

// CountActive returns the number of non-deleted tasks.
func (r *TaskRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).Where("is_deleted = ?", false).Count(&n).Error
	return n, err
}
