package handlers

import (
	"slices"
	"time"

	"task-management-api/internal/models"
)

// TaskResponse is the wire form of a task: the due date is a plain calendar
// date and tags are flattened to their names.
type TaskResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Priority    int       `json:"priority"`
	DueDate     string    `json:"due_date"`
	Completed   bool      `json:"completed"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaskListResponse struct {
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Tasks  []TaskResponse `json:"tasks"`
}

func NewTaskResponse(task *models.Task) TaskResponse {
	tags := task.TagNames()
	slices.Sort(tags)

	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		DueDate:     task.DueDateString(),
		Completed:   task.Completed,
		Tags:        tags,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func NewTaskListResponse(page *models.TaskPage) TaskListResponse {
	tasks := make([]TaskResponse, 0, len(page.Tasks))
	for i := range page.Tasks {
		tasks = append(tasks, NewTaskResponse(&page.Tasks[i]))
	}
	return TaskListResponse{
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
		Tasks:  tasks,
	}
}
