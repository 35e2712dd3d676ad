package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockline/internal/core/apperror"
	"stockline/pkg/logger"
)

// ErrorHandler renders the last gin error as {code, message, details}.
// Unknown errors become INTERNAL_ERROR; their cause is shown only when debug is set.
func ErrorHandler(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			body := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
			if debug && appErr.Err != nil && appErr.HTTPStatus >= http.StatusInternalServerError {
				body["cause"] = appErr.Err.Error()
			}
			failIdempotency(c, appErr.HTTPStatus, body)
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)

		details := map[string]any{"request_id": c.GetString(ContextKeyRequestID)}
		if debug {
			details["cause"] = err.Error()
		}
		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": details,
		}
		failIdempotency(c, http.StatusInternalServerError, body)
		c.JSON(http.StatusInternalServerError, body)
	}
}
