package llm

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by adapters.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider returned no content.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorType categorizes provider errors for retry decisions.
type ErrorType int

const (
	// ErrorTypeUnknown is an error of undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication is an invalid or missing credential.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit is an exceeded request or token rate limit.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest is a malformed request or invalid parameter.
	ErrorTypeBadRequest
	// ErrorTypeNotFound is a missing resource, typically an unknown model.
	ErrorTypeNotFound
	// ErrorTypeServerError is a failure on the provider's side.
	ErrorTypeServerError
	// ErrorTypeContentPolicy is a request blocked by provider safety filters.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork is a client-side connectivity problem.
	ErrorTypeNetwork
	// ErrorTypeTimeout is an attempt that exceeded its deadline.
	ErrorTypeTimeout
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// String returns the snake_case name of the error type.
func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ProviderError normalizes provider-specific failures into a common shape
// carrying the classification, the originating provider, and the HTTP
// status when one was observed.
type ProviderError struct {
	// Type classifies the failure for retry decisions.
	Type ErrorType
	// Provider names the vendor that produced the error.
	Provider string
	// StatusCode is the HTTP status from the provider response, if any.
	StatusCode int
	// Message is the provider's user-facing error message.
	Message string
	// WrappedError is the original error for chaining.
	WrappedError error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	base := fmt.Sprintf("%s error", e.Provider)
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if name, ok := errorTypeNames[e.Type]; ok {
		base += fmt.Sprintf(" [%s]", name)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.WrappedError != nil {
		base += fmt.Sprintf(": %v", e.WrappedError)
	}
	return base
}

// Unwrap returns the wrapped error for errors.Is / errors.As inspection.
func (e *ProviderError) Unwrap() error { return e.WrappedError }

// Retryable reports whether a request failing with this error should be
// retried. Rate limits, server errors, network failures, and timeouts are
// transient; everything else is terminal.
func (e *ProviderError) Retryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError builds a classified ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// IsRetryableError reports whether err carries a retryable classification.
// Unclassified errors are treated as terminal so that auth or validation
// mistakes never burn the retry budget. Adapters classify everything they
// return, so unclassified errors should not normally escape this package.
func IsRetryableError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// errorClassifier maps raw provider failures onto ProviderError values.
// Each adapter owns one, keyed by its provider name.
type errorClassifier struct {
	provider string
}

// classifyHTTP builds a ProviderError from an HTTP status code.
func (ec *errorClassifier) classifyHTTP(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType
	switch statusCode {
	case 401, 403:
		errType = ErrorTypeAuthentication
		message = fmt.Sprintf("%s authentication failed", ec.provider)
	case 429:
		errType = ErrorTypeRateLimit
		message = fmt.Sprintf("%s rate limit exceeded", ec.provider)
	case 400:
		errType = ErrorTypeBadRequest
	case 404:
		errType = ErrorTypeNotFound
	case 500, 502, 503, 504:
		errType = ErrorTypeServerError
	default:
		switch {
		case statusCode >= 400 && statusCode < 500:
			errType = ErrorTypeBadRequest
		case statusCode >= 500:
			errType = ErrorTypeServerError
		default:
			errType = ErrorTypeUnknown
		}
	}

	return NewProviderError(ec.provider, errType, statusCode, message, err)
}

// classifyContext builds a ProviderError from a context cancellation or
// deadline. Deadlines count as timeouts so the retry policy treats them
// as transient; explicit cancellation is not retried.
func (ec *errorClassifier) classifyContext(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.provider, ErrorTypeTimeout, 0, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.provider, ErrorTypeUnknown, 0, "request canceled", err)
	default:
		return NewProviderError(ec.provider, ErrorTypeUnknown, 0, "", err)
	}
}

// isContextError reports whether err is context cancellation or deadline.
func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
