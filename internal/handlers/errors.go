package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"task-management-api/internal/apierr"
	"task-management-api/internal/logger"
	"task-management-api/internal/services"

	"github.com/gin-gonic/gin"
)

// handleTaskError translates service errors into the error envelope. Anything
// that is not a domain error is logged and reported as a bare 500.
func handleTaskError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		apierr.Validation(c, validationErr.Fields)
	case errors.As(err, &notFoundErr):
		apierr.Respond(c, http.StatusNotFound, map[string]string{"task_id": notFoundErr.Error()})
	default:
		_ = c.Error(err)
		logger.FromContext(c.Request.Context()).Error("task request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		apierr.Respond(c, http.StatusInternalServerError, nil)
	}
}

// bindJSON decodes the request body into dst. It writes the error response
// itself and reports whether the handler may continue.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, io.EOF):
		apierr.Message(c, http.StatusBadRequest, "request body must not be empty")
	case errors.Is(err, io.ErrUnexpectedEOF):
		apierr.Message(c, http.StatusBadRequest, "request body is not valid JSON")
	case errors.As(err, &syntaxErr):
		apierr.Message(c, http.StatusBadRequest, "request body is not valid JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		apierr.Validation(c, map[string]string{field: typeMessage(typeErr.Type)})
	default:
		apierr.Message(c, http.StatusBadRequest, err.Error())
	}
	return false
}

func typeMessage(t reflect.Type) string {
	if t == nil {
		return "has an invalid type"
	}
	switch t.Kind() {
	case reflect.String:
		return "must be a string"
	case reflect.Bool:
		return "must be a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "must be an integer"
	case reflect.Slice, reflect.Array:
		return "must be an array"
	case reflect.Struct, reflect.Map:
		return "must be an object"
	default:
		return "has an invalid type"
	}
}
