// Package historycache is a process-local TTL cache of wallet histories
package historycache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/screwyprof/oppfeed/feed"
)

// Defaults
const (
	DefaultSize = 10_000
	DefaultTTL  = 5 * time.Minute
)

// Cache implements feed.HistoryCache on top of an expirable LRU
type Cache struct {
	lru *expirable.LRU[string, *feed.WalletHistory]
}

var _ feed.HistoryCache = (*Cache)(nil)

// New creates a cache holding at most size wallets for ttl each
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: expirable.NewLRU[string, *feed.WalletHistory](size, nil, ttl)}
}

// Get returns the cached history and whether the wallet was cached
func (c *Cache) Get(wallet string) (*feed.WalletHistory, bool) {
	return c.lru.Get(wallet)
}

// Set caches h, which may be nil for wallets without history
func (c *Cache) Set(wallet string, h *feed.WalletHistory) {
	c.lru.Add(wallet, h)
}

// Invalidate evicts the wallet
func (c *Cache) Invalidate(wallet string) {
	c.lru.Remove(wallet)
}

// Len returns the number of cached wallets
func (c *Cache) Len() int {
	return c.lru.Len()
}
