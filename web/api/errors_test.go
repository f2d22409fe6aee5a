package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/api"
)

func TestAPIErrorHandling(t *testing.T) {
	t.Parallel()

	t.Run("it exposes all error details safely for BadRequest", func(t *testing.T) {
		t.Parallel()

		// Arrange - any validation error (all 4xx are safe to expose)
		validationErr := fmt.Errorf("%w: %q", feed.ErrInvalidSort, "popular")

		// Act
		apiErr := api.BadRequest(validationErr)

		// Assert
		assert.Equal(t, http.StatusBadRequest, apiErr.HTTPCode())
		assert.Equal(t, `invalid filter: unknown sort: "popular"`, apiErr.Error())
		assert.Equal(t, api.KindInvalidSort, apiErr.Kind())
		assert.Equal(t, validationErr, apiErr.Cause())
		assert.Zero(t, apiErr.RetryAfter())
	})

	t.Run("it hides sensitive details for InternalServerError", func(t *testing.T) {
		t.Parallel()

		// Arrange - internal database error (should NOT be exposed)
		internalErr := errors.New("password authentication failed for user 'oppfeed'")

		// Act
		apiErr := api.InternalServerError(internalErr)

		// Assert
		assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPCode())
		assert.Equal(t, "Internal Server Error", apiErr.Error())
		assert.Equal(t, api.KindInternal, apiErr.Kind())
		assert.Equal(t, internalErr, apiErr.Cause())
	})

	t.Run("it classifies unknown errors as InternalServerError", func(t *testing.T) {
		t.Parallel()

		// Arrange
		unknownErr := errors.New("some random error")

		// Act
		apiErr := api.Wrap(unknownErr)

		// Assert
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPCode())
		assert.Equal(t, unknownErr, apiErr.Cause())
	})

	t.Run("it classifies catalog outages as retryable", func(t *testing.T) {
		t.Parallel()

		// Arrange
		outage := fmt.Errorf("%w: %w", feed.ErrCatalogUnavailable, errors.New("connection refused"))

		// Act
		apiErr := api.Wrap(outage)

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.HTTPCode())
		assert.Equal(t, api.KindCatalogUnavailable, apiErr.Kind())
		assert.Equal(t, time.Second, apiErr.RetryAfter())
		assert.NotContains(t, apiErr.Error(), "connection refused")
		assert.ErrorIs(t, apiErr, feed.ErrCatalogUnavailable)
	})

	t.Run("it creates correct JSON structure when marshaling", func(t *testing.T) {
		t.Parallel()

		// Arrange
		apiErr := api.BadRequest(feed.ErrInvalidLimit)

		// Act
		jsonBytes, err := json.Marshal(apiErr)

		// Assert
		require.NoError(t, err)

		var response map[string]any
		err = json.Unmarshal(jsonBytes, &response)
		require.NoError(t, err)

		assert.Equal(t, float64(http.StatusBadRequest), response["code"])
		assert.Equal(t, "invalid_limit", response["kind"])
		assert.Equal(t, "invalid filter: limit must be between 1 and 50", response["message"])
	})

	t.Run("it prevents double-wrapping of API errors", func(t *testing.T) {
		t.Parallel()

		// Arrange
		apiErr1 := api.BadRequest(errors.New("some validation error"))

		// Act
		apiErr2 := api.Wrap(apiErr1)

		// Assert
		assert.Same(t, apiErr1, apiErr2)
	})

	t.Run("it supports error unwrapping correctly", func(t *testing.T) {
		t.Parallel()

		// Arrange
		originalErr := errors.New("original error")
		apiErr := api.BadRequest(originalErr)

		// Act & Assert
		assert.True(t, errors.Is(apiErr, originalErr))
		assert.Equal(t, originalErr, errors.Unwrap(apiErr))
	})

	t.Run("it returns nil when wrapping a nil error", func(t *testing.T) {
		t.Parallel()

		// Act
		result := api.Wrap(nil)

		// Assert
		assert.Nil(t, result)
	})
}

func TestBadRequestKinds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err  error
		kind string
	}{
		{err: feed.ErrInvalidSort, kind: api.KindInvalidSort},
		{err: feed.ErrInvalidLimit, kind: api.KindInvalidLimit},
		{err: fmt.Errorf("%w: must be between 0 and 100", feed.ErrInvalidTrustFloor), kind: api.KindInvalidTrustFloor},
		{err: feed.ErrInvalidRewardRange, kind: api.KindInvalidRewardRange},
		{err: feed.ErrSearchTooLong, kind: api.KindInvalidFilter},
		{err: feed.ErrUnknownType, kind: api.KindInvalidFilter},
	}

	for _, tc := range testCases {
		t.Run(tc.kind+"/"+tc.err.Error(), func(t *testing.T) {
			t.Parallel()

			// Act
			apiErr := api.BadRequest(tc.err)

			// Assert
			assert.Equal(t, tc.kind, apiErr.Kind())
		})
	}
}
