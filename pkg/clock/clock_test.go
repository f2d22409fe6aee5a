package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/oppfeed/pkg/clock"
)

func TestSystemClock(t *testing.T) {
	t.Parallel()

	// Act
	now := clock.SystemClock{}.Now()

	// Assert
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestFrozen(t *testing.T) {
	t.Parallel()

	// Arrange
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := clock.Frozen{At: at}

	// Act
	fired := <-c.After(time.Hour)

	// Assert
	assert.Equal(t, at, c.Now())
	assert.Equal(t, at, fired)
}
