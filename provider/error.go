package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ModelError is the normalized failure type for model backends. Raw
// transport or SDK errors never cross the provider seam; backends wrap them
// so the loop can decide on retries without knowing which backend produced
// the failure.
type ModelError struct {
	// Provider names the backend that produced the error.
	Provider string

	// Message is a human-readable description of what went wrong.
	Message string

	// StatusCode is the HTTP status when the failure came from an HTTP
	// transport, zero otherwise.
	StatusCode int

	// Retryable reports whether the same request may succeed if repeated.
	Retryable bool

	// Cause is the underlying error, if any.
	Cause error
}

func (e *ModelError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	case e.Provider != "":
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	default:
		return e.Message
	}
}

func (e *ModelError) Unwrap() error { return e.Cause }

// NewModelError wraps err as a non-retryable model error.
func NewModelError(provider string, err error) *ModelError {
	return &ModelError{
		Provider:  provider,
		Message:   err.Error(),
		Cause:     err,
		Retryable: false,
	}
}

// FromStatusCode builds a model error from an HTTP response status,
// classifying it as retryable or terminal.
//
// Rate limits and server-side failures are retryable. Authentication,
// authorization and malformed-request failures are terminal: repeating the
// identical request cannot fix them.
func FromStatusCode(provider string, statusCode int, message string) *ModelError {
	return &ModelError{
		Provider:   provider,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryableStatus(statusCode),
	}
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	default:
		return statusCode >= 500
	}
}

// IsRetryable reports whether err is a model error worth repeating.
func IsRetryable(err error) bool {
	var me *ModelError
	return errors.As(err, &me) && me.Retryable
}
