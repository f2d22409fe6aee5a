package feed_test

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/feed/memcatalog"
)

func TestPaginatorRankGenerations(t *testing.T) {
	t.Parallel()

	t.Run("it keeps a session on its generation when a newer one is published", func(t *testing.T) {
		t.Parallel()

		// Arrange
		r := newRankedHarness(t)
		r.ranks.publish(t, 1, airdropSeries(20))
		req := feed.Request{Filters: mustFilters(t, feed.FilterInput{}), Limit: 5}
		first := r.page(t, req)

		// Act
		r.ranks.publish(t, 2, reversedSeries(20))
		second := r.page(t, next(req, first))
		fresh := r.page(t, req)

		// Assert
		assert.Equal(t, []string{"opp-00", "opp-01", "opp-02", "opp-03", "opp-04"}, ids(first.Items))
		assert.Equal(t, []string{"opp-05", "opp-06", "opp-07", "opp-08", "opp-09"}, ids(second.Items))
		assert.False(t, second.Reset)
		assert.Equal(t, "opp-19", fresh.Items[0].Opportunity.ID)
	})

	t.Run("it starts a new snapshot when the session's generation was pruned", func(t *testing.T) {
		t.Parallel()

		// Arrange
		r := newRankedHarness(t)
		r.ranks.publish(t, 1, airdropSeries(20))
		req := feed.Request{Filters: mustFilters(t, feed.FilterInput{}), Limit: 5}
		first := r.page(t, req)

		// Act
		r.ranks.publish(t, 2, reversedSeries(20))
		r.ranks.prune(1)
		second := r.page(t, next(req, first))

		// Assert
		assert.True(t, second.Reset)
		assert.Equal(t, []string{"opp-19", "opp-18", "opp-17", "opp-16", "opp-15"}, ids(second.Items))
		assert.NotNil(t, second.NextCursor)

		_, _, _, resets := r.recorder.snapshot()
		assert.Equal(t, 1, resets)
	})

	t.Run("it keeps a session that started live on live scoring", func(t *testing.T) {
		t.Parallel()

		// Arrange
		r := newRankedHarness(t)
		req := feed.Request{Filters: mustFilters(t, feed.FilterInput{}), Limit: 5}
		first := r.page(t, req)

		// Act
		r.ranks.publish(t, 1, reversedSeries(20))
		second := r.page(t, next(req, first))

		// Assert
		assert.Equal(t, []string{"opp-00", "opp-01", "opp-02", "opp-03", "opp-04"}, ids(first.Items))
		assert.Equal(t, []string{"opp-05", "opp-06", "opp-07", "opp-08", "opp-09"}, ids(second.Items))
		assert.False(t, second.Reset)
	})

	t.Run("it restarts rather than mixing ranks with live scores", func(t *testing.T) {
		t.Parallel()

		// Arrange
		r := newRankedHarness(t)
		r.ranks.publish(t, 1, airdropSeries(20))
		r.catalog.Upsert(opportunity("opp-01", withTrust(81), updatedAt(baseTime.Add(-30*time.Second))))
		req := feed.Request{Filters: mustFilters(t, feed.FilterInput{}), Limit: 12}
		first := r.page(t, req)

		// Act
		r.ranks.prune(1)
		second := r.page(t, next(req, first))
		session := slices.Clone(second.Items)
		for p := second; p.NextCursor != nil; {
			p = r.page(t, next(req, p))
			session = append(session, p.Items...)
		}

		// Assert
		assert.Contains(t, ids(first.Items), "opp-01")
		require.True(t, second.Reset)
		assert.Len(t, session, 20)
		assertDistinct(t, session)
	})
}

// rankedHarness wires a paginator over precomputed generations with a live fallback
type rankedHarness struct {
	catalog   *memcatalog.Catalog
	ranks     *rankGenerations
	recorder  *recorder
	paginator *feed.Paginator
}

func newRankedHarness(t *testing.T) *rankedHarness {
	t.Helper()

	r := &rankedHarness{
		catalog:  memcatalog.NewCatalog(airdropSeries(20)...),
		ranks:    newRankGenerations(),
		recorder: &recorder{},
	}
	live := feed.NewScoringSource(r.catalog, feed.NewScoreCalculator(feed.DefaultWeights()), 0, nil)
	r.paginator = feed.NewPaginator(
		feed.NewRoutingSource(r.ranks, live, nil),
		nil,
		feed.NewCursorCodec(testSecret),
		feed.WithPaginatorClock(fixedClock{now: baseTime}),
		feed.WithRecorder(r.recorder),
	)
	return r
}

func (r *rankedHarness) page(t *testing.T, req feed.Request) *feed.Page {
	t.Helper()
	p, err := r.paginator.Page(context.Background(), req)
	require.NoError(t, err)
	return p
}

// rankGenerations is an in-memory set of rank generations. The newest one serves new sessions.
type rankGenerations struct {
	mu      sync.Mutex
	ranks   map[int64][]feed.Candidate
	current int64
}

func newRankGenerations() *rankGenerations {
	return &rankGenerations{ranks: make(map[int64][]feed.Candidate)}
}

// publish ranks items cold one minute before baseTime as generation id
func (g *rankGenerations) publish(t *testing.T, id int64, items []feed.Opportunity) {
	t.Helper()

	scorer := feed.NewScoringSource(memcatalog.NewCatalog(items...), feed.NewScoreCalculator(feed.DefaultWeights()), 0, nil)
	ranked, err := scorer.Fetch(context.Background(), feed.Query{
		Filters:    mustFilters(t, feed.FilterInput{}),
		Sort:       feed.SortRecommended,
		SnapshotTs: baseTime.Add(-time.Minute),
		Limit:      len(items),
	})
	require.NoError(t, err)

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range ranked {
		ranked[i].Generation = id
	}
	g.ranks[id] = ranked
	g.current = id
}

func (g *rankGenerations) prune(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ranks, id)
}

func (g *rankGenerations) Fetch(_ context.Context, q feed.Query) ([]feed.Candidate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := q.Generation
	if id == 0 {
		id = g.current
	}
	ranked, ok := g.ranks[id]
	switch {
	case !ok && q.Generation == 0:
		return nil, feed.ErrNoRankSnapshot
	case !ok:
		return nil, fmt.Errorf("%w: generation %d", feed.ErrRankGenerationGone, id)
	}

	start := 0
	if q.After != nil {
		after := *q.After
		start = sort.Search(len(ranked), func(i int) bool { return after.Before(ranked[i].Key) })
	}
	end := min(start+q.Limit, len(ranked))
	return slices.Clone(ranked[start:end]), nil
}

// reversedSeries builds opp-00..opp-(n-1) whose cold ranking is reverse index order
func reversedSeries(n int) []feed.Opportunity {
	items := make([]feed.Opportunity, n)
	for i := range n {
		items[i] = opportunity(fmt.Sprintf("opp-%02d", i), withTrust(80+(i*15)/max(n-1, 1)))
	}
	return items
}

func assertDistinct(t *testing.T, items []feed.Candidate) {
	t.Helper()

	seen := make(map[string]int, len(items))
	for _, c := range items {
		seen[c.Opportunity.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "%s delivered %d times", id, n)
	}
}
