// Package dto holds the JSON shapes of the quote API and the mapping from
// domain errors to HTTP responses.
package dto

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail carries a machine code, a message for the user and, for
// validation failures, per-field messages.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

const (
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeInvalidFormat = "INVALID_FORMAT"
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrorCodeUnavailable   = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout       = "TIMEOUT"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	ErrorCodeNotFound:      http.StatusNotFound,
	ErrorCodeValidation:    http.StatusBadRequest,
	ErrorCodeInvalidFormat: http.StatusBadRequest,
	ErrorCodeBadRequest:    http.StatusBadRequest,
	ErrorCodeTooLarge:      http.StatusRequestEntityTooLarge,
	ErrorCodeUnavailable:   http.StatusServiceUnavailable,
	ErrorCodeTimeout:       http.StatusGatewayTimeout,
}

// HTTPStatusFromCode returns the status for code; unknown codes are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.Error.Details = details

	return resp
}

// WithTraceID sets the trace ID and returns e.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

const traceIDKey = "trace_id"

// GetTraceID picks the ID reported in error bodies: a "trace_id" gin value,
// else the active span's trace, else the X-Request-ID header.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(traceIDKey); ok {
		id, _ := v.(string)
		return id
	}

	if c.Request == nil {
		return ""
	}

	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	return c.Request.Header.Get("X-Request-ID")
}

// MapDomainError maps err onto a status and body. Anything that is not a
// known domain error becomes a generic 500.
func MapDomainError(err error) (int, *ErrorResponse) {
	var validationErr *domain.ValidationError

	switch {
	case err == nil:
		return http.StatusOK, nil
	case domain.IsNotFound(err):
		return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, err.Error())
	case errors.As(err, &validationErr) && validationErr.Field != "":
		return http.StatusBadRequest, NewErrorResponseWithDetails(ErrorCodeValidation, err.Error(),
			map[string]string{validationErr.Field: validationErr.Message})
	case domain.IsValidation(err):
		return http.StatusBadRequest, NewErrorResponse(ErrorCodeValidation, err.Error())
	case domain.IsFormat(err):
		return http.StatusBadRequest, NewErrorResponse(ErrorCodeInvalidFormat, err.Error())
	case domain.IsTransientNetwork(err):
		return http.StatusServiceUnavailable, NewErrorResponse(ErrorCodeUnavailable, "remote service temporarily unavailable")
	default:
		return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, "an internal error occurred")
	}
}

// HandleError writes the response for err and logs 5xx causes.
func HandleError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	if resp == nil {
		return
	}

	resp.TraceID = GetTraceID(c)

	if status >= http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).LogAttrs(ctx, slog.LevelError, "request failed",
			slog.Any("error", err),
			slog.Int("status", status),
			slog.String("trace_id", resp.TraceID),
		)
	}

	c.JSON(status, resp)
}

// RespondWithCode writes an adapter-level failure such as a bad body.
func RespondWithCode(c *gin.Context, code, message string) {
	c.JSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}

// AbortWithCode is RespondWithCode for middleware: it also stops the chain.
func AbortWithCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}
