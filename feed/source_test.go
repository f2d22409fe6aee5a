package feed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/feed/memcatalog"
)

func TestScoringSource(t *testing.T) {
	t.Parallel()

	scorer := feed.NewScoreCalculator(feed.DefaultWeights())

	t.Run("it returns candidates in total order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		catalog := memcatalog.NewCatalog(airdropSeries(5)...)
		source := feed.NewScoringSource(catalog, scorer, 0, nil)

		// Act
		got, err := source.Fetch(context.Background(), feed.Query{
			Filters:    mustFilters(t, feed.FilterInput{}),
			Sort:       feed.SortRecommended,
			SnapshotTs: baseTime,
			Limit:      10,
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"opp-00", "opp-01", "opp-02", "opp-03", "opp-04"}, ids(got))
	})

	t.Run("it continues strictly after the keyset position", func(t *testing.T) {
		t.Parallel()

		// Arrange
		catalog := memcatalog.NewCatalog(airdropSeries(6)...)
		source := feed.NewScoringSource(catalog, scorer, 0, nil)
		q := feed.Query{
			Filters:    mustFilters(t, feed.FilterInput{}),
			Sort:       feed.SortRecommended,
			SnapshotTs: baseTime,
			Limit:      2,
		}
		first, err := source.Fetch(context.Background(), q)
		require.NoError(t, err)

		// Act
		q.After = &first[1].Key
		second, err := source.Fetch(context.Background(), q)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"opp-02", "opp-03"}, ids(second))
	})

	t.Run("it ignores rows updated after the snapshot", func(t *testing.T) {
		t.Parallel()

		// Arrange
		catalog := memcatalog.NewCatalog(airdropSeries(3)...)
		catalog.Upsert(opportunity("late", updatedAt(baseTime.Add(time.Minute))))
		source := feed.NewScoringSource(catalog, scorer, 0, nil)

		// Act
		got, err := source.Fetch(context.Background(), feed.Query{
			Filters:    mustFilters(t, feed.FilterInput{}),
			Sort:       feed.SortTrust,
			SnapshotTs: baseTime,
			Limit:      10,
		})

		// Assert
		require.NoError(t, err)
		assert.NotContains(t, ids(got), "late")
	})

	t.Run("it personalizes with the resolved history", func(t *testing.T) {
		t.Parallel()

		// Arrange
		catalog := memcatalog.NewCatalog(
			opportunity("eth", withTrust(90)),
			opportunity("base", withTrust(85), withChains("base"), withType(feed.TypeQuest)),
		)
		source := feed.NewScoringSource(catalog, scorer, 0, nil)
		history := feed.Aggregate(questActivity(5))

		// Act
		got, err := source.Fetch(context.Background(), feed.Query{
			Filters:      mustFilters(t, feed.FilterInput{}),
			Sort:         feed.SortRecommended,
			SnapshotTs:   baseTime,
			Limit:        10,
			Personalized: true,
			History:      func() *feed.WalletHistory { return history },
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "eth"}, ids(got))
	})

	t.Run("it refuses to continue a ranked session", func(t *testing.T) {
		t.Parallel()

		// Arrange
		source := feed.NewScoringSource(memcatalog.NewCatalog(airdropSeries(3)...), scorer, 0, nil)

		// Act
		_, err := source.Fetch(context.Background(), feed.Query{
			Filters:    mustFilters(t, feed.FilterInput{}),
			SnapshotTs: baseTime,
			Limit:      1,
			After:      &feed.SortKey{ID: "opp-00"},
			Generation: 3,
		})

		// Assert
		require.ErrorIs(t, err, feed.ErrRankGenerationGone)
	})

	t.Run("it reports catalog failures as unavailable", func(t *testing.T) {
		t.Parallel()

		// Arrange
		catalog := memcatalog.NewCatalog()
		catalog.FailWith(errors.New("connection reset"))
		source := feed.NewScoringSource(catalog, scorer, 0, nil)

		// Act
		_, err := source.Fetch(context.Background(), feed.Query{SnapshotTs: baseTime, Limit: 1})

		// Assert
		require.ErrorIs(t, err, feed.ErrCatalogUnavailable)
	})
}

func TestRoutingSource(t *testing.T) {
	t.Parallel()

	cold := feed.Query{Sort: feed.SortRecommended, SnapshotTs: baseTime, Limit: 1}

	testCases := []struct {
		name      string
		ranked    *stubSource
		query     feed.Query
		wantFrom  string
		wantCalls int
	}{
		{name: "cold recommended uses ranks", ranked: &stubSource{id: "ranked"}, query: cold, wantFrom: "ranked", wantCalls: 1},
		{name: "other sorts score live", ranked: &stubSource{id: "ranked"}, query: feed.Query{Sort: feed.SortNewest}, wantFrom: "live"},
		{name: "personalized sessions score live", ranked: &stubSource{id: "ranked"}, query: feed.Query{Sort: feed.SortRecommended, Personalized: true}, wantFrom: "live"},
		{name: "missing rank snapshot falls back to live", ranked: &stubSource{err: feed.ErrNoRankSnapshot}, query: cold, wantFrom: "live", wantCalls: 1},
		{name: "a session pinned to a generation stays ranked", ranked: &stubSource{id: "ranked"}, query: feed.Query{Sort: feed.SortRecommended, After: &feed.SortKey{ID: "opp-04"}, Generation: 7}, wantFrom: "ranked", wantCalls: 1},
		{name: "a session that started live stays live", ranked: &stubSource{id: "ranked"}, query: feed.Query{Sort: feed.SortRecommended, After: &feed.SortKey{ID: "opp-04"}}, wantFrom: "live"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			router := feed.NewRoutingSource(tc.ranked, &stubSource{id: "live"}, nil)

			// Act
			got, err := router.Fetch(context.Background(), tc.query)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, []string{tc.wantFrom}, ids(got))
			assert.Equal(t, tc.wantCalls, tc.ranked.calls)
		})
	}

	t.Run("it routes everything live without a ranked source", func(t *testing.T) {
		t.Parallel()

		// Arrange
		router := feed.NewRoutingSource(nil, &stubSource{id: "live"}, nil)

		// Act
		got, err := router.Fetch(context.Background(), cold)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"live"}, ids(got))
	})

	t.Run("it rejects a pinned generation without a ranked source", func(t *testing.T) {
		t.Parallel()

		// Arrange
		router := feed.NewRoutingSource(nil, &stubSource{id: "live"}, nil)

		// Act
		_, err := router.Fetch(context.Background(), feed.Query{Sort: feed.SortRecommended, After: &feed.SortKey{ID: "opp-04"}, Generation: 7})

		// Assert
		require.ErrorIs(t, err, feed.ErrRankGenerationGone)
	})

	t.Run("it surfaces a pruned pinned generation", func(t *testing.T) {
		t.Parallel()

		// Arrange
		live := &stubSource{id: "live"}
		router := feed.NewRoutingSource(&stubSource{err: feed.ErrRankGenerationGone}, live, nil)

		// Act
		_, err := router.Fetch(context.Background(), feed.Query{Sort: feed.SortRecommended, After: &feed.SortKey{ID: "opp-04"}, Generation: 7})

		// Assert
		require.ErrorIs(t, err, feed.ErrRankGenerationGone)
		assert.Zero(t, live.calls)
	})

	t.Run("it surfaces other ranked failures", func(t *testing.T) {
		t.Parallel()

		// Arrange
		router := feed.NewRoutingSource(&stubSource{err: feed.ErrCatalogUnavailable}, &stubSource{id: "live"}, nil)

		// Act
		_, err := router.Fetch(context.Background(), cold)

		// Assert
		require.ErrorIs(t, err, feed.ErrCatalogUnavailable)
	})
}

// stubSource returns a single candidate named after itself, or err
type stubSource struct {
	id    string
	err   error
	calls int
}

func (s *stubSource) Fetch(context.Context, feed.Query) ([]feed.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []feed.Candidate{{Opportunity: opportunity(s.id), Key: feed.SortKey{ID: s.id}}}, nil
}
