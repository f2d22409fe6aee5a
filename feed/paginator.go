package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/screwyprof/oppfeed/pkg/clock"
)

// Paginator defaults
const (
	DefaultOverFetch = 2
	DefaultMaxRounds = 4
)

// HistorySource resolves wallet histories. A nil history with a nil error means the wallet has none.
type HistorySource interface {
	Get(ctx context.Context, wallet string) (*WalletHistory, error)
}

// Clock abstracts time for production and testing
type Clock interface {
	Now() time.Time
}

// Recorder observes paginator outcomes
type Recorder interface {
	PageServed(sort Sort, personalized bool, items int, duration time.Duration)
	HistoryDegraded()
	SponsoredSkipped(n int)
	CursorReset()
}

type nopRecorder struct{}

func (nopRecorder) PageServed(Sort, bool, int, time.Duration) {}
func (nopRecorder) HistoryDegraded()                          {}
func (nopRecorder) SponsoredSkipped(int)                      {}
func (nopRecorder) CursorReset()                              {}

// Request is one "next page" call
type Request struct {
	Filters Filters
	Sort    Sort
	Limit   int
	Cursor  string
	Wallet  string
}

// Page is one delivered page. NextCursor is nil when the source is exhausted.
type Page struct {
	Items        []Candidate
	NextCursor   *string
	SnapshotTs   time.Time
	Personalized bool
	Reset        bool
}

// PaginatorOption configures the Paginator
type PaginatorOption func(*Paginator)

// WithPaginatorClock injects a custom Clock (e.g., for testing)
func WithPaginatorClock(c Clock) PaginatorOption {
	return func(p *Paginator) { p.clock = c }
}

// WithOverFetch sets how many page sizes are requested from the source per round
func WithOverFetch(factor int) PaginatorOption {
	return func(p *Paginator) { p.overFetch = max(factor, 1) }
}

// WithMaxRounds bounds the number of source round trips per page
func WithMaxRounds(n int) PaginatorOption {
	return func(p *Paginator) { p.maxRounds = max(n, 1) }
}

// WithSponsoredWindow replaces the default 2-in-12 sponsored cap
func WithSponsoredWindow(f SponsoredWindowFilter) PaginatorOption {
	return func(p *Paginator) { p.window = f }
}

// WithRecorder sets the outcome recorder
func WithRecorder(r Recorder) PaginatorOption {
	return func(p *Paginator) { p.recorder = r }
}

// WithPaginatorLogger sets the logger
func WithPaginatorLogger(l *slog.Logger) PaginatorOption {
	return func(p *Paginator) { p.logger = l }
}

// Paginator orchestrates snapshot resolution, wallet context, candidate fetch,
// sponsored capping and cursor encoding. It holds no per-session state.
type Paginator struct {
	source    CandidateSource
	history   HistorySource
	codec     *CursorCodec
	window    SponsoredWindowFilter
	clock     Clock
	overFetch int
	maxRounds int
	recorder  Recorder
	logger    *slog.Logger
}

// NewPaginator creates a Paginator. history may be nil to disable personalization.
func NewPaginator(source CandidateSource, history HistorySource, codec *CursorCodec, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		source:    source,
		history:   history,
		codec:     codec,
		window:    NewSponsoredWindowFilter(DefaultSponsoredCap, DefaultSponsoredWindow),
		clock:     clock.SystemClock{},
		overFetch: DefaultOverFetch,
		maxRounds: DefaultMaxRounds,
		recorder:  nopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// session is the resolved state a page continues from
type session struct {
	snapshot     time.Time
	after        *SortKey
	trailing     []bool
	generation   int64
	personalized bool
	reset        bool
}

// collected is the outcome of the fetch and cap loop
type collected struct {
	items      []Candidate
	after      *SortKey
	trailing   []bool
	generation int64
	skipped    int
	exhausted  bool
}

// Page returns the next page for req. Only catalog failures are returned as errors.
func (p *Paginator) Page(ctx context.Context, req Request) (*Page, error) {
	start := p.clock.Now()
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Sort == "" {
		req.Sort = SortRecommended
	}

	s := p.resolveSession(ctx, req)
	page, err := p.serve(ctx, req, s)
	if errors.Is(err, ErrRankGenerationGone) && s.after != nil {
		p.recorder.CursorReset()
		p.logger.InfoContext(ctx, "Rank generation of the session is gone, starting a new snapshot",
			slog.Time("snapshot", s.snapshot),
			slog.Int64("generation", s.generation),
		)
		page, err = p.serve(ctx, req, p.freshSession(req, true))
	}
	if errors.Is(err, ErrRankGenerationGone) {
		err = fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if err != nil {
		return nil, err
	}

	p.recorder.PageServed(req.Sort, page.Personalized, len(page.Items), p.clock.Now().Sub(start))
	return page, nil
}

// serve builds one page continuing session s
func (p *Paginator) serve(ctx context.Context, req Request, s session) (*Page, error) {
	filterHash := req.Filters.Hash()

	var (
		history    *WalletHistory
		historyErr error
		result     collected
	)
	historyDone := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	if s.personalized && p.history != nil {
		g.Go(func() error {
			defer close(historyDone)
			history, historyErr = p.history.Get(gctx, req.Wallet)
			return nil
		})
	} else {
		close(historyDone)
	}
	g.Go(func() error {
		var err error
		result, err = p.collect(gctx, req, s, func() *WalletHistory {
			<-historyDone
			return history
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if historyErr != nil {
		p.recorder.HistoryDegraded()
		p.logger.WarnContext(ctx, "Wallet history unavailable, ranking cold",
			slog.Any("error", historyErr),
			slog.Bool("continuing", s.after != nil),
			slog.Time("snapshot", s.snapshot),
		)
	}
	if result.skipped > 0 {
		p.recorder.SponsoredSkipped(result.skipped)
	}

	page := &Page{
		Items:        result.items,
		SnapshotTs:   s.snapshot,
		Personalized: history != nil,
		Reset:        s.reset,
	}

	if !result.exhausted && result.after != nil {
		token, err := p.codec.Encode(Cursor{
			SnapshotTs:   s.snapshot,
			Sort:         req.Sort,
			FilterHash:   filterHash,
			Personalized: s.personalized,
			LastKey:      *result.after,
			Trailing:     result.trailing,
			Generation:   result.generation,
		})
		if err != nil {
			return nil, err
		}
		page.NextCursor = &token
	}
	return page, nil
}

// resolveSession continues the cursor's session or mints a new snapshot
func (p *Paginator) resolveSession(ctx context.Context, req Request) session {
	if req.Cursor == "" {
		return p.freshSession(req, false)
	}

	c, err := p.codec.Decode(req.Cursor)
	if err == nil && (c.Sort != req.Sort || c.FilterHash != req.Filters.Hash()) {
		err = fmt.Errorf("%w: cursor belongs to a different query", ErrInvalidCursor)
	}
	if err != nil {
		p.recorder.CursorReset()
		p.logger.InfoContext(ctx, "Discarding cursor, starting a new snapshot", slog.Any("error", err))
		return p.freshSession(req, true)
	}

	return session{
		snapshot:     c.SnapshotTs,
		after:        &c.LastKey,
		trailing:     tail(c.Trailing, p.window.Window-1),
		generation:   c.Generation,
		personalized: c.Personalized && req.Wallet != "",
	}
}

func (p *Paginator) freshSession(req Request, reset bool) session {
	return session{
		snapshot:     p.clock.Now().UTC().Truncate(time.Microsecond),
		personalized: req.Wallet != "",
		reset:        reset,
	}
}

// collect fetches batches past the session position and caps them until the page is full
func (p *Paginator) collect(ctx context.Context, req Request, s session, history func() *WalletHistory) (collected, error) {
	batch := req.Limit * p.overFetch
	out := collected{
		items:      make([]Candidate, 0, req.Limit),
		after:      s.after,
		trailing:   s.trailing,
		generation: s.generation,
	}

	// Rounds past the budget continue only while the page is still empty.
	for round := 0; len(out.items) < req.Limit && (round < p.maxRounds || len(out.items) == 0); round++ {
		candidates, err := p.source.Fetch(ctx, Query{
			Filters:      req.Filters,
			Sort:         req.Sort,
			After:        out.after,
			SnapshotTs:   s.snapshot,
			Limit:        batch,
			Personalized: s.personalized,
			Generation:   out.generation,
			History:      history,
		})
		if err != nil {
			if errors.Is(err, ErrRankGenerationGone) {
				return collected{}, err
			}
			if !errors.Is(err, ErrCatalogUnavailable) {
				err = fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
			}
			return collected{}, err
		}

		res := p.window.Apply(candidates, out.trailing, req.Limit-len(out.items))
		out.items = append(out.items, res.Accepted...)
		out.trailing = res.Trailing
		out.skipped += res.Skipped
		if res.Consumed > 0 {
			last := candidates[res.Consumed-1]
			out.after = &last.Key
			out.generation = last.Generation
		}

		if len(candidates) < batch && res.Consumed == len(candidates) {
			out.exhausted = true
			break
		}
	}

	return out, nil
}
