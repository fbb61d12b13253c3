package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrTaskNotFound matches any *NotFoundError via errors.Is.
var ErrTaskNotFound = errors.New("task not found")

// NotFoundError reports a task id that does not exist or was soft-deleted.
type NotFoundError struct {
	ID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Task with id %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrTaskNotFound
}

// ValidationError carries one message per offending request field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
