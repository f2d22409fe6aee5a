// Package memcatalog keeps the catalog and wallet activity in memory.
// It backs tests and local runs without Postgres.
package memcatalog

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/screwyprof/oppfeed/feed"
)

// Catalog is an in-memory, versioned feed.Catalog. Every Upsert adds a version;
// reads see the newest version at or before the snapshot.
type Catalog struct {
	mu       sync.RWMutex
	versions map[string][]feed.Opportunity
	err      error
}

var _ feed.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog holding items
func NewCatalog(items ...feed.Opportunity) *Catalog {
	c := &Catalog{versions: make(map[string][]feed.Opportunity, len(items))}
	c.Upsert(items...)
	return c
}

// Upsert records a new version of each opportunity
func (c *Catalog) Upsert(items ...feed.Opportunity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range items {
		versions := append(c.versions[o.ID], o)
		slices.SortStableFunc(versions, func(a, b feed.Opportunity) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
		c.versions[o.ID] = versions
	}
}

// FailWith makes every read return err until called with nil
func (c *Catalog) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Candidates implements feed.Catalog
func (c *Catalog) Candidates(ctx context.Context, f feed.Filters, snapshot time.Time, limit int) ([]feed.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return nil, c.err
	}

	out := make([]feed.Opportunity, 0, len(c.versions))
	for _, versions := range c.versions {
		o, ok := asOf(versions, snapshot)
		if ok && f.Match(o, snapshot) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b feed.Opportunity) int { return strings.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func asOf(versions []feed.Opportunity, snapshot time.Time) (feed.Opportunity, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].UpdatedAt.After(snapshot) {
			return versions[i], true
		}
	}
	return feed.Opportunity{}, false
}

// HistoryStore is an in-memory feed.HistoryStore
type HistoryStore struct {
	mu       sync.RWMutex
	activity map[string]feed.WalletActivity
	delay    time.Duration
	err      error
	calls    int
}

var _ feed.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore creates an empty history store
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{activity: make(map[string]feed.WalletActivity)}
}

// Put replaces the activity of a wallet
func (s *HistoryStore) Put(wallet string, a feed.WalletActivity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[wallet] = a
}

// Slow delays every read by d
func (s *HistoryStore) Slow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// FailWith makes every read return err until called with nil
func (s *HistoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many reads reached the store
func (s *HistoryStore) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// WalletActivity implements feed.HistoryStore
func (s *HistoryStore) WalletActivity(ctx context.Context, wallet string, limit int) (feed.WalletActivity, error) {
	s.mu.Lock()
	s.calls++
	delay, err := s.delay, s.err
	a := s.activity[wallet]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return feed.WalletActivity{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return feed.WalletActivity{}, err
	}

	a.Completed = a.Completed[:min(len(a.Completed), limit)]
	a.Saved = a.Saved[:min(len(a.Saved), limit)]
	return a, nil
}
