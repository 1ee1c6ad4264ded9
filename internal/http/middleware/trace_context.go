package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/lessongen/internal/platform/ctxutil"
)

const (
	headerTraceID       = "X-Trace-Id"
	headerRequestID     = "X-Request-Id"
	headerCorrelationID = "X-Correlation-Id"
)

// AttachTraceContext puts trace, request and optional client correlation ids
// on the request context and echoes them back. Handlers that learn the
// correlation id from the body later use ctxutil.WithCorrelationID.

func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		traceID := strings.TrimSpace(c.GetHeader(headerTraceID))
		if traceID == "" {
			spanCtx := trace.SpanContextFromContext(c.Request.Context())
			if spanCtx.HasTraceID() {
				traceID = spanCtx.TraceID().String()
			}
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}
		corrID := strings.TrimSpace(c.GetHeader(headerCorrelationID))
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:       traceID,
			RequestID:     reqID,
			CorrelationID: corrID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		if corrID != "" {
			c.Set("correlation_id", corrID)
			c.Writer.Header().Set(headerCorrelationID, corrID)
		}
		c.Next()
	}
}
