package context

import (
	"context"

	"stockline/internal/core/id"
)

// TraceContext identifies one API request. TraceID may come from an
// upstream span; RequestID is echoed back in X-Request-ID.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// NewTraceContext reuses requestID when the caller sent one.
func NewTraceContext(requestID string) *TraceContext {
	if requestID == "" {
		requestID = id.New().String()
	}
	return &TraceContext{TraceID: id.New().String(), RequestID: requestID}
}

func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns nil outside a request.
func GetTrace(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return tc
}

func GetTraceID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.TraceID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.RequestID
	}
	return ""
}
