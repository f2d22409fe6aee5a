package feed_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/oppfeed/feed"
)

var (
	baseTime   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testSecret = []byte("test-cursor-secret")
)

// fixedClock always returns the same instant
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type opportunityOption func(*feed.Opportunity)

// opportunity builds a cold-start-neutral airdrop: no expiry, no urgency, trust 85
func opportunity(id string, opts ...opportunityOption) feed.Opportunity {
	o := feed.Opportunity{
		ID:          id,
		Type:        feed.TypeAirdrop,
		Title:       "Opportunity " + id,
		Protocol:    "Protocol",
		Chains:      []string{"ethereum"},
		TrustScore:  85,
		PublishedAt: baseTime.Add(-24 * time.Hour),
		Difficulty:  feed.DifficultyEasy,
		RewardMin:   decimal.NewFromInt(10),
		RewardMax:   decimal.NewFromInt(100),
		UpdatedAt:   baseTime.Add(-time.Hour),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func withTrust(score int) opportunityOption {
	return func(o *feed.Opportunity) { o.TrustScore = score }
}

func sponsored() opportunityOption {
	return func(o *feed.Opportunity) { o.Sponsored = true }
}

func featured() opportunityOption {
	return func(o *feed.Opportunity) { o.Featured = true }
}

func withType(t feed.Type) opportunityOption {
	return func(o *feed.Opportunity) { o.Type = t }
}

func withChains(chains ...string) opportunityOption {
	return func(o *feed.Opportunity) { o.Chains = chains }
}

func withUrgency(flags ...feed.Urgency) opportunityOption {
	return func(o *feed.Opportunity) { o.Urgency = flags }
}

func withTitle(title string) opportunityOption {
	return func(o *feed.Opportunity) { o.Title = title }
}

func withReward(lo, hi int64) opportunityOption {
	return func(o *feed.Opportunity) {
		o.RewardMin = decimal.NewFromInt(lo)
		o.RewardMax = decimal.NewFromInt(hi)
	}
}

func expiresAt(t time.Time) opportunityOption {
	return func(o *feed.Opportunity) { o.ExpiresAt = &t }
}

func publishedAt(t time.Time) opportunityOption {
	return func(o *feed.Opportunity) { o.PublishedAt = t }
}

func updatedAt(t time.Time) opportunityOption {
	return func(o *feed.Opportunity) { o.UpdatedAt = t }
}

// airdropSeries builds n airdrops opp-00..opp-(n-1) whose cold ranking equals index order
func airdropSeries(n int, sponsoredAt ...int) []feed.Opportunity {
	isSponsored := make(map[int]bool, len(sponsoredAt))
	for _, i := range sponsoredAt {
		isSponsored[i] = true
	}

	items := make([]feed.Opportunity, n)
	for i := range n {
		opts := []opportunityOption{withTrust(95 - (i*15)/max(n-1, 1))}
		if isSponsored[i] {
			opts = append(opts, sponsored())
		}
		items[i] = opportunity(fmt.Sprintf("opp-%02d", i), opts...)
	}
	return items
}

func mustFilters(t *testing.T, in feed.FilterInput) feed.Filters {
	t.Helper()
	f, err := feed.NewFilters(in)
	if err != nil {
		t.Fatalf("filters: %v", err)
	}
	return f
}

func ids(items []feed.Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.Opportunity.ID
	}
	return out
}

func sponsoredFlags(items []feed.Candidate) []bool {
	out := make([]bool, len(items))
	for i, c := range items {
		out[i] = c.Opportunity.Sponsored
	}
	return out
}

// assertSponsoredCap checks every contiguous run of window flags holds at most capacity sponsored items
func assertSponsoredCap(t *testing.T, flags []bool, capacity, window int) {
	t.Helper()

	for start := 0; start < len(flags); start++ {
		end := min(start+window, len(flags))
		count := 0
		for _, f := range flags[start:end] {
			if f {
				count++
			}
		}
		assert.LessOrEqual(t, count, capacity, "window starting at %d holds %d sponsored items", start, count)
	}
}

// recorder captures paginator outcomes
type recorder struct {
	mu       sync.Mutex
	pages    int
	degraded int
	skipped  int
	resets   int
}

func (r *recorder) PageServed(feed.Sort, bool, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages++
}

func (r *recorder) HistoryDegraded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded++
}

func (r *recorder) SponsoredSkipped(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped += n
}

func (r *recorder) CursorReset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *recorder) snapshot() (pages, degraded, skipped, resets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages, r.degraded, r.skipped, r.resets
}
