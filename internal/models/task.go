package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	MinPriority = 1
	MaxPriority = 5

	MaxTitleLength = 200

	DefaultListLimit = 10
	MaxListLimit     = 100

	DateLayout = "2006-01-02"
)

// Task is a unit of work. IsDeleted is a terminal soft-delete flag: rows are
// never reactivated and every read path filters them out.
type Task struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"size:200;not null"`
	Description *string        `json:"description" gorm:"type:text"`
	Priority    int            `json:"priority" gorm:"not null;default:3;index:ix_tasks_priority;index:ix_tasks_deleted_priority,priority:2"`
	DueDate     datatypes.Date `json:"due_date" gorm:"not null;index:ix_tasks_due_date"`
	Completed   bool           `json:"completed" gorm:"not null;default:false;index:ix_tasks_completed;index:ix_tasks_deleted_completed,priority:2"`
	IsDeleted   bool           `json:"-" gorm:"not null;default:false;index:ix_tasks_is_deleted;index:ix_tasks_deleted_completed,priority:1;index:ix_tasks_deleted_priority,priority:1"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;index:ix_tasks_created_at"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null"`

	Tags []Tag `json:"tags" gorm:"many2many:task_tags;constraint:OnDelete:CASCADE"`
}

// TagNames returns the names of the task's tags in their loaded order.
func (t *Task) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return names
}

// DueDateString formats the due date as an ISO calendar date.
func (t *Task) DueDateString() string {
	return time.Time(t.DueDate).Format(DateLayout)
}

// TaskTag is a row of the pure task/tag join table.
type TaskTag struct {
	TaskID uint `gorm:"primaryKey"`
	TagID  uint `gorm:"primaryKey;index:ix_task_tags_tag_id"`
}

func (TaskTag) TableName() string {
	return "task_tags"
}

// TaskFilter holds the optional list predicates. Nil pointers and an empty
// Tags slice mean the predicate is not applied.
type TaskFilter struct {
	Completed *bool
	Priority  *int
	Tags      []string
	Limit     int
	Offset    int
}

// Validate reports out-of-range filter values keyed by query parameter.
func (f TaskFilter) Validate() map[string]string {
	fields := make(map[string]string)
	if f.Priority != nil && (*f.Priority < MinPriority || *f.Priority > MaxPriority) {
		fields["priority"] = "must be between 1 and 5"
	}
	if f.Limit < 1 || f.Limit > MaxListLimit {
		fields["limit"] = "must be between 1 and 100"
	}
	if f.Offset < 0 {
		fields["offset"] = "must be greater than or equal to 0"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// TaskPage is one page of a filtered listing plus the unpaginated match count.
type TaskPage struct {
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Tasks  []Task `json:"tasks"`
}
