package middleware

import (
	"net/http"
	"runtime/debug"

	"task-management-api/internal/apierr"
	"task-management-api/internal/logger"

	"github.com/gin-gonic/gin"
)

// RecoveryWithLog turns a panic in any later handler into the 500 envelope.
// The panic value and stack go to the log only.
func RecoveryWithLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(c.Request.Context()).Error("panic recovered",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				apierr.Abort(c, http.StatusInternalServerError, nil)
			}
		}()
		c.Next()
	}
}
