package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"google.golang.org/genai"
)

// SchemaValidationError is returned when the model answered with JSON that
// does not match the inventory schema.
type SchemaValidationError = fridge.SchemaValidationError

// ConfigurationError means the adapter cannot be built, typically because
// the API key is missing. It is never worth retrying.
type ConfigurationError struct {
	Setting string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError covers network failures, timeouts and non-2xx answers
// from the model provider.
type TransportError struct {
	StatusCode int // 0 when no HTTP response was received
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("model request timed out: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("model request failed (status %d): %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("model request failed: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuth reports whether the provider rejected the credentials.
func (e *TransportError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ParseError means the model answer was not JSON. Raw holds the answer for
// diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errEmptyResponse = errors.New("empty response from model")

// ErrNoImage is returned by Extract when called without image data. No
// request is sent.
var ErrNoImage = errors.New("no image provided")

// transportError classifies an error returned by the genai client.
func transportError(ctx context.Context, err error) *TransportError {
	te := &TransportError{Err: err}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		te.Timeout = true
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		te.StatusCode = apiErr.Code
	case errors.As(err, &apiErrPtr):
		te.StatusCode = apiErrPtr.Code
	}
	if te.StatusCode == http.StatusGatewayTimeout || te.StatusCode == http.StatusRequestTimeout {
		te.Timeout = true
	}

	return te
}
