// Package middleware provides the gin middleware chain of the API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"stockline/internal/core/apperror"
	"stockline/pkg/logger"
)

// Recovery converts a panic into an INTERNAL_ERROR. It must run inside
// ErrorHandler, which renders the response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"panic", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			appErr := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
				WithDetail("request_id", c.GetString(ContextKeyRequestID))
			_ = c.Error(appErr)
			c.Abort()
		}()
		c.Next()
	}
}
