package dto

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/api/v1/quotes", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func TestErrorResponse(t *testing.T) {
	resp := NewErrorResponseWithDetails(ErrorCodeValidation, MessageIncompleteQuote, map[string]string{"text": "must not be empty"}).
		WithTraceID("trace-1")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"error": {
			"code": "VALIDATION_ERROR",
			"message": "Please enter both a quote and a category.",
			"details": {"text": "must not be empty"}
		},
		"traceId": "trace-1"
	}`, string(raw))

	raw, err = json.Marshal(NewErrorResponse(ErrorCodeInternal, "boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"boom"}}`, string(raw))
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := map[string]int{
		ErrorCodeNotFound:      http.StatusNotFound,
		ErrorCodeValidation:    http.StatusBadRequest,
		ErrorCodeInvalidFormat: http.StatusBadRequest,
		ErrorCodeBadRequest:    http.StatusBadRequest,
		ErrorCodeTooLarge:      http.StatusRequestEntityTooLarge,
		ErrorCodeUnavailable:   http.StatusServiceUnavailable,
		ErrorCodeTimeout:       http.StatusGatewayTimeout,
		ErrorCodeInternal:      http.StatusInternalServerError,
		"SOMETHING_ELSE":       http.StatusInternalServerError,
	}

	for code, want := range tests {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, want, HTTPStatusFromCode(code))
		})
	}
}

func TestGetTraceID(t *testing.T) {
	t.Run("gin value wins", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "")
		c.Set("trace_id", "from-gin")
		c.Request.Header.Set("X-Request-ID", "from-header")

		assert.Equal(t, "from-gin", GetTraceID(c))
	})

	t.Run("active span", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "")

		traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		require.NoError(t, err)

		sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{1}})
		c.Request = c.Request.WithContext(trace.ContextWithSpanContext(c.Request.Context(), sc))

		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(c))
	})

	t.Run("request id header fallback", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "")
		c.Request.Header.Set("X-Request-ID", "req-7")

		assert.Equal(t, "req-7", GetTraceID(c))
	})

	t.Run("nothing available", func(t *testing.T) {
		c, _ := testContext(http.MethodGet, "")

		assert.Empty(t, GetTraceID(c))
	})
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "missing key",
			err:         domain.NewNotFoundError("key", "lastQuote"),
			wantStatus:  http.StatusNotFound,
			wantCode:    ErrorCodeNotFound,
			wantMessage: "lastQuote",
		},
		{
			name:        "import not an array",
			err:         domain.NewFormatError("import", "top-level value must be an array"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeInvalidFormat,
			wantMessage: "must be an array",
		},
		{
			name:        "blank quote text",
			err:         domain.NewValidationError("text", "must not be empty"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeValidation,
			wantMessage: "text",
		},
		{
			name:        "posts service down",
			err:         domain.NewTransientNetworkError("posts-service", "fetch posts", errors.New("refused")),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    ErrorCodeUnavailable,
			wantMessage: "temporarily unavailable",
		},
		{
			name:        "unknown error hides cause",
			err:         errors.New("disk on fire"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ErrorCodeInternal,
			wantMessage: "internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext(http.MethodGet, "")
			c.Set("trace_id", "trace-"+tt.wantCode)

			HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.wantMessage)
			assert.NotContains(t, resp.Error.Message, "disk on fire")
			assert.Equal(t, "trace-"+tt.wantCode, resp.TraceID)
		})
	}
}

func TestHandleError_ValidationDetails(t *testing.T) {
	c, w := testContext(http.MethodPost, "")

	HandleError(c, domain.NewValidationError("category", "must not be empty"))

	assert.Equal(t, map[string]string{"category": "must not be empty"}, decodeError(t, w).Error.Details)
}

func TestHandleError_Nil(t *testing.T) {
	c, w := testContext(http.MethodGet, "")

	HandleError(c, nil)

	assert.Empty(t, w.Body.String())
}

func TestRespondAndAbortWithCode(t *testing.T) {
	c, w := testContext(http.MethodPost, "")
	RespondWithCode(c, ErrorCodeBadRequest, "request body must be a JSON object")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, c.IsAborted())

	c, w = testContext(http.MethodGet, "")
	AbortWithCode(c, ErrorCodeNotFound, "route not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())
	assert.Equal(t, "route not found", decodeError(t, w).Error.Message)
}

func TestBindAndValidate_AddQuote(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    error
		wantFields map[string]string
	}{
		{
			name: "both present",
			body: `{"text":"Keep going.","category":"Motivation"}`,
		},
		{
			name:       "blank text",
			body:       `{"text":"   ","category":"Motivation"}`,
			wantErr:    ErrValidation,
			wantFields: map[string]string{"text": "must not be empty"},
		},
		{
			name:    "both missing",
			body:    `{}`,
			wantErr: ErrValidation,
			wantFields: map[string]string{
				"text":     "must not be empty",
				"category": "must not be empty",
			},
		},
		{
			name:    "array body",
			body:    `[{"text":"x","category":"y"}]`,
			wantErr: ErrBinding,
		},
		{
			name:    "not json",
			body:    `text=hi`,
			wantErr: ErrBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testContext(http.MethodPost, tt.body)

			var req AddQuoteRequest

			err := BindAndValidate(c, &req)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, AddQuoteRequest{Text: "Keep going.", Category: "Motivation"}, req)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)

			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, ValidationErrors(err))
			}
		})
	}
}

func TestValidate_FilterRequest(t *testing.T) {
	require.NoError(t, Validate(&FilterRequest{Category: ""}))
	require.NoError(t, Validate(&FilterRequest{Category: "NoSuchCategory"}))

	err := Validate(&FilterRequest{Category: strings.Repeat("x", 201)})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, map[string]string{"category": "must be at most 200 characters"}, ValidationErrors(err))
}

func TestValidationErrors_NonValidatorError(t *testing.T) {
	assert.Empty(t, ValidationErrors(errors.New("plain")))
	assert.Same(t, Validator(), Validator())
}
