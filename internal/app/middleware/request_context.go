package middleware

import (
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const RequestIDHeader = "X-Request-ID"

// AttachRequestContext puts a trace id on the request context for the Ctx* loggers.
// A caller supplied X-Request-ID wins over the active span's trace id.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		traceID := c.GetHeader(RequestIDHeader)
		if traceID == "" {
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			} else {
				traceID = uuid.NewString()
			}
		}
		ctx = logger.WithTraceID(ctx, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, traceID)

		start := time.Now()
		c.Next()

		logger.CtxInfo(ctx, log_messages.RequestCompleted,
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
