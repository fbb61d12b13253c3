package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"task-management-api/internal/models"
	"task-management-api/internal/repositories"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskService interface {
	CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error)
	GetTaskByID(ctx context.Context, id uint) (*models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) (*models.TaskPage, error)
	UpdateTask(ctx context.Context, id uint, input UpdateTaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, id uint) error
}

type Option func(*DBTaskService)

// WithClock replaces time.Now for timestamps and due date checks.
func WithClock(now func() time.Time) Option {
	return func(s *DBTaskService) {
		s.now = now
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *DBTaskService) {
		s.log = log
	}
}

// DBTaskService implements TaskService on a gorm database. Every write runs
// in a single transaction.
type DBTaskService struct {
	db        *gorm.DB
	now       func() time.Time
	log       *slog.Logger
	validator *Validator
}

func NewTaskService(db *gorm.DB, opts ...Option) *DBTaskService {
	s := &DBTaskService{
		db:  db,
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(s.now)
	return s
}

// timestamp is the stored form of "now": UTC, truncated to what Postgres keeps.
func (s *DBTaskService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// inTx runs fn in a transaction, rolling back on error or panic.
func (s *DBTaskService) inTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func parseDate(value string) (datatypes.Date, error) {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return datatypes.Date{}, NewValidationError("due_date", "must be a valid date in YYYY-MM-DD format")
	}
	return datatypes.Date(t), nil
}

func (s *DBTaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	if err := s.validator.ValidateCreate(input); err != nil {
		return nil, err
	}

	due, err := parseDate(*input.DueDate)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Priority:    *input.Priority,
		DueDate:     due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.inTx(ctx, func(tx *gorm.DB) error {
		tags, err := repositories.NewTagRepository(tx).Resolve(ctx, input.Tags)
		if err != nil {
			return err
		}
		task.Tags = tags
		return repositories.NewTaskRepository(tx).Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task created", "task_id", task.ID, "tags", len(task.Tags))
	return task, nil
}

func (s *DBTaskService) GetTaskByID(ctx context.Context, id uint) (*models.Task, error) {
	task, err := repositories.NewTaskRepository(s.db).FindActive(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	return task, nil
}

func (s *DBTaskService) ListTasks(ctx context.Context, filter models.TaskFilter) (*models.TaskPage, error) {
	filter.Tags = models.NormalizeTagNames(filter.Tags)
	if err := s.validator.ValidateFilter(filter); err != nil {
		return nil, err
	}

	tasks, total, err := repositories.NewTaskRepository(s.db).List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &models.TaskPage{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Tasks:  tasks,
	}, nil
}

func (s *DBTaskService) UpdateTask(ctx context.Context, id uint, input UpdateTaskInput) (*models.Task, error) {
	if err := s.validator.ValidateUpdate(input); err != nil {
		return nil, err
	}
	if !input.HasChanges() {
		return s.GetTaskByID(ctx, id)
	}

	updates := map[string]interface{}{"updated_at": s.timestamp()}
	if input.Title.Set {
		updates["title"] = input.Title.Value
	}
	if input.Description.Set {
		if input.Description.Null {
			updates["description"] = nil
		} else {
			updates["description"] = input.Description.Value
		}
	}
	if input.Priority.Set {
		updates["priority"] = input.Priority.Value
	}
	if input.DueDate.Set {
		due, err := parseDate(input.DueDate.Value)
		if err != nil {
			return nil, err
		}
		updates["due_date"] = due
	}
	if input.Completed.Set {
		updates["completed"] = input.Completed.Value
	}

	var task *models.Task
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		tasks := repositories.NewTaskRepository(tx)

		matched, err := tasks.Update(ctx, id, updates)
		if err != nil {
			return err
		}
		if !matched {
			return &NotFoundError{ID: id}
		}

		if input.Tags.HasValue() {
			tags, err := repositories.NewTagRepository(tx).Resolve(ctx, input.Tags.Value)
			if err != nil {
				return err
			}
			if err := tasks.ReplaceTags(ctx, id, tags); err != nil {
				return err
			}
		}

		task, err = tasks.FindActive(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "task updated", "task_id", id, "fields", len(updates)-1, "tags_replaced", input.Tags.HasValue())
	return task, nil
}

func (s *DBTaskService) DeleteTask(ctx context.Context, id uint) error {
	deleted, err := repositories.NewTaskRepository(s.db).SoftDelete(ctx, id, s.timestamp())
	if err != nil {
		return err
	}
	if !deleted {
		return &NotFoundError{ID: id}
	}

	s.log.InfoContext(ctx, "task deleted", "task_id", id)
	return nil
}
