package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Wallet history defaults
const (
	DefaultHistoryTimeout = 150 * time.Millisecond
	DefaultHistoryLimit   = 50
	DefaultHistoryRate    = rate.Limit(200)
	DefaultHistoryBurst   = 50
)

// Wallet history errors. They never reach the feed caller.
var (
	ErrHistoryThrottled   = errors.New("wallet history throttled")
	ErrHistoryUnavailable = errors.New("wallet history unavailable")
)

// Activity is one completed or saved opportunity of a wallet
type Activity struct {
	OpportunityID string
	Type          Type
	Chains        []string
	At            time.Time
}

// WalletActivity is the raw, bounded activity read for one wallet
type WalletActivity struct {
	PreferredChains []string
	Completed       []Activity
	Saved           []Activity
}

// HistoryStore reads the most recent activity of a wallet, at most limit items per kind
type HistoryStore interface {
	WalletActivity(ctx context.Context, wallet string, limit int) (WalletActivity, error)
}

// HistoryCache caches aggregated histories per wallet. A cached nil means "known to have no history".
type HistoryCache interface {
	Get(wallet string) (*WalletHistory, bool)
	Set(wallet string, h *WalletHistory)
	Invalidate(wallet string)
}

// WalletHistory is the aggregated relevance context of a wallet
type WalletHistory struct {
	PreferredChains map[string]struct{}
	HistoryChains   map[string]int
	CompletedTypes  map[Type]int
	SavedTypes      map[Type]int
}

// Aggregate folds raw activity into a WalletHistory. It returns nil when there is nothing to personalize on.
func Aggregate(a WalletActivity) *WalletHistory {
	if len(a.PreferredChains) == 0 && len(a.Completed) == 0 && len(a.Saved) == 0 {
		return nil
	}

	h := &WalletHistory{
		PreferredChains: make(map[string]struct{}, len(a.PreferredChains)),
		HistoryChains:   make(map[string]int),
		CompletedTypes:  make(map[Type]int),
		SavedTypes:      make(map[Type]int),
	}
	for _, chain := range a.PreferredChains {
		h.PreferredChains[strings.ToLower(chain)] = struct{}{}
	}
	for _, act := range a.Completed {
		h.CompletedTypes[act.Type]++
		h.countChains(act.Chains)
	}
	for _, act := range a.Saved {
		h.SavedTypes[act.Type]++
		h.countChains(act.Chains)
	}
	return h
}

func (h *WalletHistory) countChains(chains []string) {
	for _, chain := range chains {
		h.HistoryChains[strings.ToLower(chain)]++
	}
}

func (h *WalletHistory) topChainCount() int {
	top := 0
	for _, n := range h.HistoryChains {
		top = max(top, n)
	}
	return top
}

// HistoryOption configures the HistoryProvider
type HistoryOption func(*HistoryProvider)

// WithHistoryTimeout bounds a single history fetch
func WithHistoryTimeout(d time.Duration) HistoryOption {
	return func(p *HistoryProvider) { p.timeout = d }
}

// WithHistoryLimit caps the number of items read per activity kind
func WithHistoryLimit(n int) HistoryOption {
	return func(p *HistoryProvider) { p.limit = n }
}

// WithHistoryRateLimit throttles store reads across all wallets
func WithHistoryRateLimit(r rate.Limit, burst int) HistoryOption {
	return func(p *HistoryProvider) { p.limiter = rate.NewLimiter(r, burst) }
}

// HistoryProvider serves wallet histories from a cache backed by a HistoryStore.
// Concurrent misses for one wallet share a single store read.
type HistoryProvider struct {
	store   HistoryStore
	cache   HistoryCache
	group   singleflight.Group
	limiter *rate.Limiter
	timeout time.Duration
	limit   int

	mu       sync.Mutex
	inflight map[string]*flight
}

// flight is one store read. An invalidation during the read marks it stale.
type flight struct {
	stale bool
}

// NewHistoryProvider creates a provider over store and cache
func NewHistoryProvider(store HistoryStore, cache HistoryCache, opts ...HistoryOption) *HistoryProvider {
	p := &HistoryProvider{
		store:    store,
		cache:    cache,
		limiter:  rate.NewLimiter(DefaultHistoryRate, DefaultHistoryBurst),
		timeout:  DefaultHistoryTimeout,
		limit:    DefaultHistoryLimit,
		inflight: make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the wallet's history, nil when the wallet has none.
// A non-nil error means the history could not be read in time; callers rank cold.
func (p *HistoryProvider) Get(ctx context.Context, wallet string) (*WalletHistory, error) {
	wallet = NormalizeWallet(wallet)
	if wallet == "" {
		return nil, nil
	}

	if h, ok := p.cache.Get(wallet); ok {
		return h, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Runs detached from the caller, bounded by its own deadline.
	result := p.group.DoChan(wallet, func() (any, error) {
		fetchCtx, fetchCancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer fetchCancel()
		return p.fetch(fetchCtx, wallet)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, ctx.Err())
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		h, _ := res.Val.(*WalletHistory)
		return h, nil
	}
}

// Invalidate drops the cached history of a wallet. A read already in flight
// still answers its callers but is not cached.
func (p *HistoryProvider) Invalidate(wallet string) {
	wallet = NormalizeWallet(wallet)

	p.mu.Lock()
	if f, ok := p.inflight[wallet]; ok {
		f.stale = true
	}
	p.cache.Invalidate(wallet)
	p.mu.Unlock()

	p.group.Forget(wallet)
}

// NormalizeWallet trims an address and lower-cases hex (0x) addresses,
// whose letter case is only a checksum. Other encodings are case-sensitive.
func NormalizeWallet(wallet string) string {
	wallet = strings.TrimSpace(wallet)
	if len(wallet) > 2 && (wallet[:2] == "0x" || wallet[:2] == "0X") {
		return strings.ToLower(wallet)
	}
	return wallet
}

func (p *HistoryProvider) begin(wallet string) *flight {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := &flight{}
	p.inflight[wallet] = f
	return f
}

// finish ends a read and caches h if it succeeded and was not invalidated while it ran
func (p *HistoryProvider) finish(wallet string, f *flight, h *WalletHistory, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[wallet] == f {
		delete(p.inflight, wallet)
	}
	if ok && !f.stale {
		p.cache.Set(wallet, h)
	}
}

func (p *HistoryProvider) fetch(ctx context.Context, wallet string) (*WalletHistory, error) {
	if !p.limiter.Allow() {
		return nil, ErrHistoryThrottled
	}

	f := p.begin(wallet)
	activity, err := p.store.WalletActivity(ctx, wallet, p.limit)
	if err != nil {
		p.finish(wallet, f, nil, false)
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	activity.Completed = activity.Completed[:min(len(activity.Completed), p.limit)]
	activity.Saved = activity.Saved[:min(len(activity.Saved), p.limit)]

	h := Aggregate(activity)
	p.finish(wallet, f, h, true)
	return h, nil
}
