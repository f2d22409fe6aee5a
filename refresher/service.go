package refresher

import (
	"context"
	"fmt"
	"time"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/pkg/clock"
)

// Option configures the Service
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithInterval sets the refresh interval
func WithInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

// WithRetainGenerations sets how many generations survive a prune
func WithRetainGenerations(n int) Option {
	return func(s *Service) { s.retain = n }
}

// WithCatalogCeiling bounds how many catalog rows one generation ranks
func WithCatalogCeiling(n int) Option {
	return func(s *Service) { s.ceiling = n }
}

// Service ranks the catalog right away and then once per interval
type Service struct {
	catalog  feed.Catalog
	scorer   *feed.ScoreCalculator
	store    Store
	clock    Clock
	interval time.Duration
	retain   int
	ceiling  int
	events   chan Event
}

// NewService constructs a Service with required dependencies and options.
// By default it uses a real clock, a one minute interval and keeps six generations.
func NewService(catalog feed.Catalog, scorer *feed.ScoreCalculator, store Store, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		scorer:   scorer,
		store:    store,
		clock:    clock.SystemClock{},
		interval: DefaultInterval,
		retain:   DefaultRetainGenerations,
		ceiling:  DefaultCatalogCeiling,
		events:   make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retain = max(s.retain, 1)
	return s
}

// Start launches the refresh loop and returns the events channel and done channel.
//
// Shutdown pattern:
//  1. Cancel context to request shutdown: cancel()
//  2. Service stops producing events and closes events channel
//  3. Wait for complete shutdown: <-done
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

func (s *Service) run(ctx context.Context) {
	s.refreshAndReport(ctx)

	s.events <- ScheduleStarted{Interval: s.interval}
	for {
		select {
		case <-ctx.Done():
			s.events <- ScheduleShutdown{Reason: ctx.Err()}
			return
		case <-s.clock.After(s.interval):
			s.refreshAndReport(ctx)
		}
	}
}

func (s *Service) refreshAndReport(ctx context.Context) {
	s.events <- RefreshStarted{StartedAt: s.clock.Now()}

	saved, err := s.Refresh(ctx)
	if err != nil {
		s.events <- RefreshError{Err: err}
		return
	}
	s.events <- saved
}

// Refresh ranks the live catalog once, saves it as a new generation and prunes old ones
func (s *Service) Refresh(ctx context.Context) (GenerationSaved, error) {
	select {
	case <-ctx.Done():
		return GenerationSaved{}, ctx.Err()
	default:
	}

	start := s.clock.Now()
	refreshedAt := start.UTC().Truncate(time.Microsecond)

	items, err := s.catalog.Candidates(ctx, feed.Filters{}, refreshedAt, s.ceiling)
	if err != nil {
		return GenerationSaved{}, fmt.Errorf("%w: %w", ErrCatalogRead, err)
	}

	g := Generation{RefreshedAt: refreshedAt, Ranks: make([]Rank, 0, len(items))}
	for _, o := range items {
		if o.ExpiredAt(refreshedAt) {
			continue
		}
		g.Ranks = append(g.Ranks, Rank{
			OpportunityID:    o.ID,
			VersionUpdatedAt: o.UpdatedAt,
			Score:            s.scorer.Score(o, nil, refreshedAt),
		})
	}

	id, err := s.store.SaveGeneration(ctx, g)
	if err != nil {
		return GenerationSaved{}, fmt.Errorf("%w: %w", ErrSaveGeneration, err)
	}

	pruned, err := s.store.PruneGenerations(ctx, s.retain)
	if err != nil {
		return GenerationSaved{}, fmt.Errorf("%w: %w", ErrPrune, err)
	}

	return GenerationSaved{
		GenerationID: id,
		RefreshedAt:  refreshedAt,
		Items:        len(g.Ranks),
		Pruned:       pruned,
		Duration:     s.clock.Now().Sub(start),
	}, nil
}
