// Package httpkit holds the small handler toolkit shared by the HTTP services
package httpkit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// HTTPError is an error that knows its status code and keeps the detailed cause for logs
type HTTPError interface {
	HTTPCode() int
	Cause() error
	error
}

// Retryable is an HTTPError the client may retry after a delay. A zero delay means no retry hint.
type Retryable interface {
	RetryAfter() time.Duration
}

// Header constants
const (
	contentTypeHeader  = "Content-Type"
	contentTypeOptions = "X-Content-Type-Options"
	retryAfterHeader   = "Retry-After"
)

var (
	jsonContentType           = []string{"application/json; charset=utf-8"}
	nosniffContentTypeOptions = []string{"nosniff"}
)

func addHeaderIfNotSet(w http.ResponseWriter, key string, value []string) {
	header := w.Header()
	if val := header[key]; len(val) == 0 {
		header[key] = value
	}
}

type ctxKeyError struct{}

type errorHolder struct {
	err error
}

// WithErrorTracking returns ctx with a slot for the request error, reusing an existing one
func WithErrorTracking(ctx context.Context) context.Context {
	if _, ok := ctx.Value(ctxKeyError{}).(*errorHolder); ok {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyError{}, &errorHolder{})
}

// SetError records err for the logging middleware
func SetError(ctx context.Context, err error) {
	if holder, ok := ctx.Value(ctxKeyError{}).(*errorHolder); ok {
		holder.err = err
	}
}

// Error returns the recorded request error
func Error(ctx context.Context) error {
	if holder, ok := ctx.Value(ctxKeyError{}).(*errorHolder); ok {
		return holder.err
	}
	return nil
}

// HandlerFunc picks the response writer for a request
type HandlerFunc func(http.ResponseWriter, *http.Request) http.HandlerFunc

func (h HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(WithErrorTracking(r.Context()))

	if handler := h(w, r); handler != nil {
		handler(w, r)
	}
}

// JSON writes data with 200 OK
func JSON(data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addHeaderIfNotSet(w, contentTypeHeader, jsonContentType)
		addHeaderIfNotSet(w, contentTypeOptions, nosniffContentTypeOptions)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes 204 with an empty body
func NoContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// JsonError records err on the request and writes it as the JSON body
func JsonError(err HTTPError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetError(r.Context(), err)

		addHeaderIfNotSet(w, contentTypeHeader, jsonContentType)
		addHeaderIfNotSet(w, contentTypeOptions, nosniffContentTypeOptions)
		if retry, ok := err.(Retryable); ok && retry.RetryAfter() > 0 {
			seconds := max(1, int(retry.RetryAfter().Round(time.Second)/time.Second))
			w.Header().Set(retryAfterHeader, strconv.Itoa(seconds))
		}

		w.WriteHeader(err.HTTPCode())
		_ = json.NewEncoder(w).Encode(err)
	}
}
