package memcatalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/feed/memcatalog"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func item(id string, trust int, updated time.Time) feed.Opportunity {
	return feed.Opportunity{ID: id, Type: feed.TypeAirdrop, Chains: []string{"ethereum"}, TrustScore: trust, UpdatedAt: updated}
}

func TestCatalogCandidates(t *testing.T) {
	t.Parallel()

	all, err := feed.NewFilters(feed.FilterInput{})
	require.NoError(t, err)

	t.Run("it reads the newest version at or before the snapshot", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := memcatalog.NewCatalog(item("a", 85, now.Add(-time.Hour)))
		c.Upsert(item("a", 95, now), item("a", 99, now.Add(time.Minute)))

		// Act
		before, err1 := c.Candidates(context.Background(), all, now.Add(-time.Minute), 0)
		at, err2 := c.Candidates(context.Background(), all, now, 0)

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
		require.Len(t, before, 1)
		require.Len(t, at, 1)
		assert.Equal(t, 85, before[0].TrustScore)
		assert.Equal(t, 95, at[0].TrustScore)
	})

	t.Run("it hides items that only exist after the snapshot", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := memcatalog.NewCatalog(item("late", 90, now.Add(time.Second)))

		// Act
		got, err := c.Candidates(context.Background(), all, now, 0)

		// Assert
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("it filters a version that fell below the trust floor", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := memcatalog.NewCatalog(item("a", 90, now.Add(-time.Hour)), item("a", 40, now.Add(-time.Minute)))

		// Act
		got, err := c.Candidates(context.Background(), all, now, 0)

		// Assert
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("it honors the limit", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := memcatalog.NewCatalog(item("c", 90, now), item("a", 90, now), item("b", 90, now))

		// Act
		got, err := c.Candidates(context.Background(), all, now, 2)

		// Assert
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
	})
}

func TestHistoryStore(t *testing.T) {
	t.Parallel()

	t.Run("it trims activity to the limit", func(t *testing.T) {
		t.Parallel()

		// Arrange
		s := memcatalog.NewHistoryStore()
		s.Put("0xa", feed.WalletActivity{Completed: make([]feed.Activity, 5), Saved: make([]feed.Activity, 1)})

		// Act
		a, err := s.WalletActivity(context.Background(), "0xa", 3)

		// Assert
		require.NoError(t, err)
		assert.Len(t, a.Completed, 3)
		assert.Len(t, a.Saved, 1)
		assert.Equal(t, 1, s.Calls())
	})

	t.Run("it gives up when the context ends", func(t *testing.T) {
		t.Parallel()

		// Arrange
		s := memcatalog.NewHistoryStore()
		s.Slow(time.Second)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		// Act
		_, err := s.WalletActivity(ctx, "0xa", 3)

		// Assert
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
