// Package middleware provides the gin middleware chain of the quote API.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

const (
	// HeaderRequestID identifies one HTTP request.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID follows a caller's transaction across services.
	// The posts client forwards it on sync and push calls.
	HeaderCorrelationID = "X-Correlation-ID"
)

type idKey string

const (
	keyRequestID     idKey = "request_id"
	keyCorrelationID idKey = "correlation_id"
)

// RequestID takes X-Request-ID from the request or generates a UUID, echoes
// it in the response and stores it in the request context and logger.
func RequestID() gin.HandlerFunc {
	return idMiddleware(HeaderRequestID, keyRequestID, logging.WithRequestID)
}

// CorrelationID is RequestID for X-Correlation-ID.
func CorrelationID() gin.HandlerFunc {
	return idMiddleware(HeaderCorrelationID, keyCorrelationID, logging.WithCorrelationID)
}

func idMiddleware(header string, key idKey, withLogger func(context.Context, string) context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(string(key), id)
		c.Header(header, id)

		ctx := context.WithValue(c.Request.Context(), key, id)
		c.Request = c.Request.WithContext(withLogger(ctx, id))

		c.Next()
	}
}

// RequestIDFromContext returns the request ID stored by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return idFrom(ctx, keyRequestID)
}

// CorrelationIDFromContext returns the correlation ID stored by CorrelationID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return idFrom(ctx, keyCorrelationID)
}

// ContextWithRequestID stores id for RequestIDFromContext. Used outside HTTP,
// e.g. by the scheduler, to tag outgoing calls.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// ContextWithCorrelationID stores id for CorrelationIDFromContext.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyCorrelationID, id)
}

func idFrom(ctx context.Context, key idKey) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(key).(string)

	return id
}
