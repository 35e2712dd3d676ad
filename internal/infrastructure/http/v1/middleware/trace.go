package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	appctx "stockline/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Gin context keys set by the middleware chain.
const (
	ContextKeyRequestID      = "request_id"
	ContextKeyTraceID        = "trace_id"
	ContextKeyActorID        = "actor_id"
	ContextKeyIdempotencyKey = "idempotency_key"
	contextKeyIdempotency    = "idempotency_store"
)

// Trace reuses the caller's request and trace ids or generates new ones.
// An active OpenTelemetry span takes precedence for the trace id.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := appctx.NewTraceContext(c.GetHeader(HeaderRequestID))
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			tc.TraceID = sc.TraceID().String()
		} else if traceID := c.GetHeader(HeaderTraceID); traceID != "" {
			tc.TraceID = traceID
		}

		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), tc))
		c.Set(ContextKeyTraceID, tc.TraceID)
		c.Set(ContextKeyRequestID, tc.RequestID)

		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()
	}
}
