package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"task-management-api/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	titleRules    = "required,max=200"
	priorityRules = "min=1,max=5"
	dueDateRules  = "required,datetime=2006-01-02,notpast"
	tagRules      = "tagname"
)

// CreateTaskInput is the body of a create request. Priority and DueDate are
// pointers so a missing field can be told apart from a zero value.
type CreateTaskInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description *string  `json:"description"`
	Priority    *int     `json:"priority" validate:"required,min=1,max=5"`
	DueDate     *string  `json:"due_date" validate:"required,datetime=2006-01-02,notpast"`
	Tags        []string `json:"tags" validate:"omitempty,dive,tagname"`
}

// UpdateTaskInput is a partial update. Only fields present in the request
// body are applied; fields not listed here are ignored.
type UpdateTaskInput struct {
	Title       models.Optional[string]   `json:"title"`
	Description models.Optional[string]   `json:"description"`
	Priority    models.Optional[int]      `json:"priority"`
	DueDate     models.Optional[string]   `json:"due_date"`
	Completed   models.Optional[bool]     `json:"completed"`
	Tags        models.Optional[[]string] `json:"tags"`
}

// HasChanges reports whether applying the input would modify the task.
// An explicit "tags": null is treated as absent.
func (in UpdateTaskInput) HasChanges() bool {
	return in.Title.Set || in.Description.Set || in.Priority.Set ||
		in.DueDate.Set || in.Completed.Set || in.Tags.HasValue()
}

// Validator wraps go-playground/validator with the task rules and a clock
// for the due date check.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	val := &Validator{validate: v, now: now}
	_ = v.RegisterValidation("notpast", val.notPast)
	_ = v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
		return models.ValidTagName(fl.Field().String())
	})
	return val
}

// notPast accepts today or later, comparing calendar dates in the clock's
// own location.
func (val *Validator) notPast(fl validator.FieldLevel) bool {
	due, err := time.Parse(models.DateLayout, fl.Field().String())
	if err != nil {
		return false
	}
	return !due.Before(val.today())
}

func (val *Validator) today() time.Time {
	now := val.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (val *Validator) ValidateCreate(in CreateTaskInput) error {
	err := val.validate.Struct(in)
	if err == nil {
		return nil
	}
	return toValidationError(err, "")
}

func (val *Validator) ValidateUpdate(in UpdateTaskInput) error {
	fields := make(map[string]string)

	check := func(field string, set, null, nullable bool, value interface{}, rules string) {
		if !set {
			return
		}
		if null {
			if !nullable {
				fields[field] = "cannot be null"
			}
			return
		}
		if rules == "" {
			return
		}
		if err := val.validate.Var(value, rules); err != nil {
			for k, msg := range toValidationError(err, field).Fields {
				fields[k] = msg
			}
		}
	}

	check("title", in.Title.Set, in.Title.Null, false, in.Title.Value, titleRules)
	check("description", in.Description.Set, in.Description.Null, true, in.Description.Value, "")
	check("priority", in.Priority.Set, in.Priority.Null, false, in.Priority.Value, priorityRules)
	check("due_date", in.DueDate.Set, in.DueDate.Null, false, in.DueDate.Value, dueDateRules)
	check("completed", in.Completed.Set, in.Completed.Null, false, in.Completed.Value, "")

	if in.Tags.HasValue() {
		for i, tag := range in.Tags.Value {
			check(fmt.Sprintf("tags[%d]", i), true, false, false, tag, tagRules)
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// ValidateFilter checks list query bounds.
func (val *Validator) ValidateFilter(filter models.TaskFilter) error {
	if fields := filter.Validate(); fields != nil {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// toValidationError converts validator errors into field messages. field
// overrides the key for errors produced by Var, which carry no field name.
func toValidationError(err error, field string) *ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		key := field
		if key == "" {
			key = "body"
		}
		return NewValidationError(key, err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := field
		if key == "" {
			key = fieldPath(fe)
		}
		fields[key] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath strips the struct name from the namespace, leaving e.g. "tags[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "datetime":
		return "must be a valid date in YYYY-MM-DD format"
	case "notpast":
		return "must not be in the past"
	case "tagname":
		return fmt.Sprintf("must be at most %d characters", models.MaxTagNameLength)
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
