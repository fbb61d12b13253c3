// Package apierr defines the JSON error envelope shared by every endpoint.
package apierr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error categories, one per status code the API emits.
const (
	ValidationFailed    = "Validation Failed"
	NotFound            = "Not Found"
	BadRequest          = "Bad Request"
	Unauthorized        = "Unauthorized"
	TooManyRequests     = "Too Many Requests"
	InternalServerError = "Internal Server Error"
)

// ErrorResponse is the body of every non-2xx response. Details is null when
// there is nothing more specific to say.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// Category returns the envelope category for an HTTP status.
func Category(status int) string {
	switch status {
	case http.StatusUnprocessableEntity:
		return ValidationFailed
	case http.StatusNotFound:
		return NotFound
	case http.StatusBadRequest:
		return BadRequest
	case http.StatusUnauthorized:
		return Unauthorized
	case http.StatusTooManyRequests:
		return TooManyRequests
	default:
		return InternalServerError
	}
}

func Respond(c *gin.Context, status int, details map[string]string) {
	c.JSON(status, ErrorResponse{Error: Category(status), Details: details})
}

// Abort writes the envelope and stops the handler chain.
func Abort(c *gin.Context, status int, details map[string]string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: Category(status), Details: details})
}

func Validation(c *gin.Context, fields map[string]string) {
	Respond(c, http.StatusUnprocessableEntity, fields)
}

func Message(c *gin.Context, status int, message string) {
	Respond(c, status, map[string]string{"message": message})
}
