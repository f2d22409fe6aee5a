package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/screwyprof/oppfeed/feed"
)

// Sentinel errors for error classification
var (
	ErrBadRequest          = errors.New(http.StatusText(http.StatusBadRequest))
	ErrInternalServerError = errors.New(http.StatusText(http.StatusInternalServerError))
)

// Stable error kinds clients can branch on
const (
	KindInvalidFilter      = "invalid_filter"
	KindInvalidSort        = "invalid_sort"
	KindInvalidLimit       = "invalid_limit"
	KindInvalidTrustFloor  = "invalid_trust_floor"
	KindInvalidRewardRange = "invalid_reward_range"
	KindCatalogUnavailable = "catalog_unavailable"
	KindInternal           = "internal"
)

// CatalogRetryAfter is the delay advertised when the catalog is unavailable
const CatalogRetryAfter = time.Second

// Error represents a structured API error response
type Error struct {
	cause      error  // The original error (for logging/debugging)
	message    string // Safe user-facing message
	kind       string
	httpCode   int // HTTP status code (also used as API error code)
	retryAfter time.Duration
}

// HTTPCode returns the HTTP status code for this error
func (e *Error) HTTPCode() int {
	return e.httpCode
}

// Kind returns the stable error kind
func (e *Error) Kind() string {
	return e.kind
}

// RetryAfter returns how long a client should wait before retrying, zero when it should not
func (e *Error) RetryAfter() time.Duration {
	return e.retryAfter
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.message
}

// Unwrap returns the underlying cause for error unwrapping
func (e *Error) Unwrap() error {
	return e.cause
}

// Is implements error checking for sentinel errors
func (e *Error) Is(target error) bool {
	return errors.Is(e.cause, target)
}

// Cause returns the original error for logging purposes
func (e *Error) Cause() error {
	return e.cause
}

// MarshalJSON implements json.Marshaler interface
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"code":    e.httpCode,
		"kind":    e.kind,
		"message": e.message,
	})
}

// BadRequest exposes a validation error with its kind derived from the cause
func BadRequest(cause error) *Error {
	return &Error{
		cause:    cause,
		message:  cause.Error(), // 4xx errors are safe to expose
		kind:     validationKind(cause),
		httpCode: http.StatusBadRequest,
	}
}

// ServiceUnavailable reports a retryable dependency outage without exposing its details
func ServiceUnavailable(cause error) *Error {
	return &Error{
		cause:      cause,
		message:    "catalog temporarily unavailable, retry shortly",
		kind:       KindCatalogUnavailable,
		httpCode:   http.StatusServiceUnavailable,
		retryAfter: CatalogRetryAfter,
	}
}

func InternalServerError(cause error) *Error {
	return &Error{
		cause:    cause,
		message:  http.StatusText(http.StatusInternalServerError), // Never expose internal error details
		kind:     KindInternal,
		httpCode: http.StatusInternalServerError,
	}
}

// Wrap transforms any error into a safe API error.
// API errors pass through, catalog outages become 503 and anything else 500.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, feed.ErrCatalogUnavailable) {
		return ServiceUnavailable(err)
	}
	return InternalServerError(err)
}

func validationKind(err error) string {
	switch {
	case errors.Is(err, feed.ErrInvalidSort):
		return KindInvalidSort
	case errors.Is(err, feed.ErrInvalidLimit):
		return KindInvalidLimit
	case errors.Is(err, feed.ErrInvalidTrustFloor):
		return KindInvalidTrustFloor
	case errors.Is(err, feed.ErrInvalidRewardRange):
		return KindInvalidRewardRange
	default:
		return KindInvalidFilter
	}
}
