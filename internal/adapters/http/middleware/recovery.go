package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// Recovery turns a handler panic into a 500 error envelope and logs the
// stack. It must be first in the chain.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			ctx := c.Request.Context()

			reqLogger := logger
			if l, ok := logging.Lookup(ctx); ok {
				reqLogger = l
			}

			reqLogger.ErrorContext(ctx, "panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("trace_id", dto.GetTraceID(c)),
			)

			abortWith(c, dto.ErrorCodeInternal, "an internal error occurred")
		}()

		c.Next()
	}
}

// abortWith writes the error envelope unless the handler already started the body.
func abortWith(c *gin.Context, code, message string) {
	if c.Writer.Written() {
		c.Abort()
		return
	}

	dto.AbortWithCode(c, code, message)
}
