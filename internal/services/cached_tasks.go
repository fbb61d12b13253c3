package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"task-management-api/internal/cache"
	"task-management-api/internal/models"
)

const listCacheTag = "task_lists"

// CachedTaskService decorates a TaskService with a read-through cache for
// single tasks and list pages. Cache failures are logged and otherwise
// ignored, so the API keeps serving from the database when Redis is down.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
	taskTTL     time.Duration
	listTTL     time.Duration
	log         *slog.Logger
}

func NewCachedTaskService(taskService TaskService, c cache.Cache, taskTTL, listTTL time.Duration, log *slog.Logger) *CachedTaskService {
	if log == nil {
		log = slog.Default()
	}
	return &CachedTaskService{
		taskService: taskService,
		cache:       c,
		taskTTL:     taskTTL,
		listTTL:     listTTL,
		log:         log,
	}
}

// cachedTask is the value stored under a task key. Deleted tasks leave a
// tombstone so reads answer not found without reaching the database.
type cachedTask struct {
	Task    *models.Task `json:"task,omitempty"`
	Deleted bool         `json:"deleted,omitempty"`
}

func taskKey(id uint) string {
	return fmt.Sprintf("task:%d", id)
}

// taskVersionKey counts writes to one task. Reads fill the task key only if
// the count did not move while they were loading from the database.
func taskVersionKey(id uint) string {
	return fmt.Sprintf("task_version:%d", id)
}

func listKey(filter models.TaskFilter) string {
	completed, priority := "any", "any"
	if filter.Completed != nil {
		completed = strconv.FormatBool(*filter.Completed)
	}
	if filter.Priority != nil {
		priority = strconv.Itoa(*filter.Priority)
	}
	tags := models.NormalizeTagNames(filter.Tags)
	sort.Strings(tags)

	return fmt.Sprintf("tasks_paginated:%s:%s:%s:%d:%d",
		completed, priority, strings.Join(tags, ","), filter.Limit, filter.Offset)
}

func (s *CachedTaskService) warn(ctx context.Context, op string, err error) {
	s.log.WarnContext(ctx, "cache operation failed", "op", op, "error", err)
}

func (s *CachedTaskService) invalidateLists(ctx context.Context) {
	if err := s.cache.InvalidateByTag(ctx, listCacheTag); err != nil {
		s.warn(ctx, "invalidate_lists", err)
	}
}

// written must run after a write to id has committed.
func (s *CachedTaskService) written(ctx context.Context, id uint) {
	if err := s.cache.BumpVersion(ctx, taskVersionKey(id), s.taskTTL); err != nil {
		s.warn(ctx, "bump_version", err)
	}
}

func (s *CachedTaskService) fill(ctx context.Context, task *models.Task, version int64) {
	_, err := s.cache.SetIfVersion(ctx, taskKey(task.ID), cachedTask{Task: task}, s.taskTTL, taskVersionKey(task.ID), version)
	if err != nil {
		s.warn(ctx, "set", err)
	}
}

func (s *CachedTaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, input)
	if err != nil {
		return nil, err
	}

	s.invalidateLists(ctx)
	s.fill(ctx, task, 0)
	return task, nil
}

func (s *CachedTaskService) GetTaskByID(ctx context.Context, id uint) (*models.Task, error) {
	var entry cachedTask
	err := s.cache.Get(ctx, taskKey(id), &entry)
	switch {
	case err == nil && entry.Deleted:
		return nil, &NotFoundError{ID: id}
	case err == nil && entry.Task != nil:
		return entry.Task, nil
	case err != nil && !errors.Is(err, cache.ErrCacheMiss):
		s.warn(ctx, "get", err)
	}

	// The version is read before the database so a write committed during
	// the load is noticed by fill.
	version, versionErr := s.cache.Version(ctx, taskVersionKey(id))

	task, err := s.taskService.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if versionErr != nil {
		s.warn(ctx, "version", versionErr)
		return task, nil
	}
	s.fill(ctx, task, version)
	return task, nil
}

func (s *CachedTaskService) ListTasks(ctx context.Context, filter models.TaskFilter) (*models.TaskPage, error) {
	key := listKey(filter)

	var cached models.TaskPage
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.warn(ctx, "get", err)
	}

	page, err := s.taskService.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetWithTags(ctx, key, page, s.listTTL, []string{listCacheTag}); err != nil {
		s.warn(ctx, "set", err)
	}
	return page, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, id uint, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, id, input)
	if err != nil {
		return nil, err
	}

	if input.HasChanges() {
		s.written(ctx, id)
		if err := s.cache.Delete(ctx, taskKey(id)); err != nil {
			s.warn(ctx, "delete", err)
		}
		s.invalidateLists(ctx)
	}
	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, id uint) error {
	if err := s.taskService.DeleteTask(ctx, id); err != nil {
		return err
	}

	s.written(ctx, id)
	if err := s.cache.Set(ctx, taskKey(id), cachedTask{Deleted: true}, s.taskTTL); err != nil {
		s.warn(ctx, "set", err)
		if err := s.cache.Delete(ctx, taskKey(id)); err != nil {
			s.warn(ctx, "delete", err)
		}
	}
	s.invalidateLists(ctx)
	return nil
}

// WarmupJobs returns loaders for the list pages clients request most: the
// unfiltered first page, then the first page of open and of completed tasks.
func (s *CachedTaskService) WarmupJobs() []cache.WarmupJob {
	open, done := false, true
	filters := []struct {
		filter   models.TaskFilter
		priority int
	}{
		{models.TaskFilter{Limit: models.DefaultListLimit}, 3},
		{models.TaskFilter{Completed: &open, Limit: models.DefaultListLimit}, 2},
		{models.TaskFilter{Completed: &done, Limit: models.DefaultListLimit}, 1},
	}

	jobs := make([]cache.WarmupJob, 0, len(filters))
	for _, f := range filters {
		filter := f.filter
		jobs = append(jobs, cache.WarmupJob{
			Key:      listKey(filter),
			TTL:      s.listTTL,
			Tags:     []string{listCacheTag},
			Priority: f.priority,
			Load: func(ctx context.Context) (interface{}, error) {
				return s.taskService.ListTasks(ctx, filter)
			},
		})
	}
	return jobs
}
