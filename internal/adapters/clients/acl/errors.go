package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/clients"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// ErrorResponse is the error body shape some services return, nested
// (error.message) or flat (message).
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	Message string      `json:"message,omitempty"`
}

// ErrorDetail is the nested error body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetMessage returns the nested message, falling back to the flat one.
func (e *ErrorResponse) GetMessage() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}

	return e.Message
}

// maxErrorBody caps how much of an error body is read for context.
const maxErrorBody = 4 << 10

// ParseErrorResponse extracts a message from an error body.
// Returns nil if the body is empty or not JSON.
func ParseErrorResponse(body io.Reader) *ErrorResponse {
	if body == nil {
		return nil
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&errResp); err != nil {
		return nil
	}

	if errResp.GetMessage() == "" {
		return nil
	}

	return &errResp
}

// MapHTTPError converts a failed call into a domain.TransientNetworkError.
// Pass the client error when no response arrived, otherwise the response.
// A 2xx response maps to nil.
func MapHTTPError(resp *http.Response, clientErr error, serviceName, operation string) error {
	if clientErr != nil {
		return domain.NewTransientNetworkError(serviceName, operation, describeClientError(clientErr))
	}

	if resp == nil {
		return domain.NewTransientNetworkError(serviceName, operation, errors.New("no response received"))
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	cause := fmt.Errorf("unexpected status %d", resp.StatusCode)
	if errResp := ParseErrorResponse(resp.Body); errResp != nil {
		cause = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errResp.GetMessage())
	}

	return domain.NewTransientNetworkError(serviceName, operation, cause)
}

// describeClientError keeps client sentinels matchable while adding a hint.
func describeClientError(err error) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return fmt.Errorf("skipped, downstream marked unhealthy: %w", err)
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return fmt.Errorf("gave up after retries: %w", err)
	default:
		return err
	}
}
