package middleware

import (
	"task-management-api/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID reuses the caller's X-Request-ID or generates one, echoes it in
// the response and attaches a logger carrying it to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			if generated, err := uuid.NewV4(); err == nil {
				id = generated.String()
			}
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		ctx := c.Request.Context()
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("request_id", id))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
