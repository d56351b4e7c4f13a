package errorwrapper

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by engine operations. Callers branch on these with
// errors.Is; everything else is a wrapped lower-level failure.
var (
	// ErrInvalidInput indicates unparseable or empty user input
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates the capture index holds no snapshots for the target
	ErrNotFound = errors.New("not found")
	// ErrUpstreamUnavailable indicates the capture index signalled rate limiting
	// or timed out while a hold-off window was active
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrManifestNotFound indicates audit/repair ran before any download
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrCancelled indicates the abort hook stopped the operation
	ErrCancelled = errors.New("cancelled")
)

// WrapError wraps an error with additional context information
func WrapError(err error, message string) error {
	if err == nil {
		return fmt.Errorf("%s: <nil>", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NewError creates a new error with a formatted message
func NewError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// ValidationError represents validation errors with field-specific information
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// HTTPError represents HTTP-level failures from the capture index
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("HTTP %d error for URL '%s': %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d error: %s", e.StatusCode, e.Message)
}

// NewHTTPErrorWithURL creates a new HTTP error with URL context
func NewHTTPErrorWithURL(statusCode int, message, url string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		URL:        url,
	}
}

// IsCancelled reports whether an error chain carries ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsUpstreamUnavailable reports whether an error chain carries
// ErrUpstreamUnavailable.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsNotFound reports whether an error chain carries ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatusCodeOf extracts the status code from an error chain, or 0.
func StatusCodeOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
