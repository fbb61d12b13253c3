package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"task-management-api/internal/apierr"
	"task-management-api/internal/models"
	"task-management-api/internal/services"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Register mounts the task routes on r.
func (h *TaskHandler) Register(r gin.IRouter) {
	r.POST("/tasks", h.CreateTask)
	r.GET("/tasks", h.ListTasks)
	r.GET("/tasks/:id", h.GetTaskByID)
	r.PATCH("/tasks/:id", h.UpdateTask)
	r.DELETE("/tasks/:id", h.DeleteTask)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var input services.CreateTaskInput
	if !bindJSON(c, &input) {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewTaskResponse(task))
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter, fields := parseTaskFilter(c)
	if fields != nil {
		apierr.Validation(c, fields)
		return
	}

	page, err := h.taskService.ListTasks(c.Request.Context(), filter)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskListResponse(page))
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTaskByID(c.Request.Context(), id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskResponse(task))
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var input services.UpdateTaskInput
	if !bindJSON(c, &input) {
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), id, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewTaskResponse(task))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil {
		apierr.Validation(c, map[string]string{"task_id": "must be a non-negative integer"})
		return 0, false
	}
	return uint(id), true
}

// parseTaskFilter reads the list query string. Type errors are collected per
// parameter; range checks are left to the service.
func parseTaskFilter(c *gin.Context) (models.TaskFilter, map[string]string) {
	filter := models.TaskFilter{
		Limit:  models.DefaultListLimit,
		Offset: 0,
	}
	fields := make(map[string]string)

	if raw, ok := c.GetQuery("completed"); ok {
		completed, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			fields["completed"] = "must be a boolean"
		} else {
			filter.Completed = &completed
		}
	}

	if raw, ok := c.GetQuery("priority"); ok {
		priority, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			fields["priority"] = "must be an integer"
		} else {
			filter.Priority = &priority
		}
	}

	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			fields["limit"] = "must be an integer"
		} else {
			filter.Limit = limit
		}
	}

	if raw, ok := c.GetQuery("offset"); ok {
		offset, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			fields["offset"] = "must be an integer"
		} else {
			filter.Offset = offset
		}
	}

	// ?tags=a,b and ?tags=a&tags=b are equivalent.
	if values := c.QueryArray("tags"); len(values) > 0 {
		filter.Tags = models.ParseTagList(strings.Join(values, ","))
	}

	if len(fields) == 0 {
		return filter, nil
	}
	return filter, fields
}
