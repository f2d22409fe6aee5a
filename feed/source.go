package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"
)

// DefaultCatalogCeiling bounds how many rows the live scorer reads per fetch
const DefaultCatalogCeiling = 5000

// Source errors
var (
	// ErrCatalogUnavailable is the only error a feed request surfaces. It is retryable.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrNoRankSnapshot means no precomputed ranking is old enough for the session snapshot
	ErrNoRankSnapshot = errors.New("no rank snapshot for session")
	// ErrRankGenerationGone means the rank generation a session is pinned to no longer
	// exists. The session cannot continue on another scoring basis.
	ErrRankGenerationGone = errors.New("rank generation of the session is gone")
)

// Query asks a CandidateSource for the next candidates of a session
type Query struct {
	Filters      Filters
	Sort         Sort
	After        *SortKey
	SnapshotTs   time.Time
	Limit        int
	Personalized bool

	// Generation pins a continuing session to the rank generation it started on.
	// Zero with a non-nil After means the session is scored live.
	Generation int64

	// History resolves the wallet context and may block until its fetch finishes
	History func() *WalletHistory
}

// WalletHistory resolves the wallet context of the query, nil for cold start
func (q Query) WalletHistory() *WalletHistory {
	if q.History == nil {
		return nil
	}
	return q.History()
}

// CandidateSource returns filtered candidates strictly after Query.After in total order,
// considering only rows updated at or before Query.SnapshotTs.
type CandidateSource interface {
	Fetch(ctx context.Context, q Query) ([]Candidate, error)
}

// Catalog reads the newest version of each opportunity updated at or before snapshot,
// filtered, in no particular order.
type Catalog interface {
	Candidates(ctx context.Context, f Filters, snapshot time.Time, limit int) ([]Opportunity, error)
}

// ScoringSource ranks catalog rows in process with a ScoreCalculator
type ScoringSource struct {
	catalog Catalog
	scorer  *ScoreCalculator
	ceiling int
	logger  *slog.Logger
}

// NewScoringSource creates a live-scoring source
func NewScoringSource(catalog Catalog, scorer *ScoreCalculator, ceiling int, logger *slog.Logger) *ScoringSource {
	if ceiling <= 0 {
		ceiling = DefaultCatalogCeiling
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoringSource{catalog: catalog, scorer: scorer, ceiling: ceiling, logger: logger}
}

// Fetch implements CandidateSource
func (s *ScoringSource) Fetch(ctx context.Context, q Query) ([]Candidate, error) {
	if q.Generation != 0 {
		return nil, fmt.Errorf("%w: generation %d cannot continue live", ErrRankGenerationGone, q.Generation)
	}

	rows, err := s.catalog.Candidates(ctx, q.Filters, q.SnapshotTs, s.ceiling)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if len(rows) >= s.ceiling {
		s.logger.WarnContext(ctx, "Catalog read hit the ceiling, ranking is partial", slog.Int("ceiling", s.ceiling))
	}

	history := q.WalletHistory()
	candidates := make([]Candidate, 0, len(rows))
	for _, o := range rows {
		if !q.Filters.Match(o, q.SnapshotTs) {
			continue
		}
		score := s.scorer.Score(o, history, q.SnapshotTs)
		candidates = append(candidates, Candidate{
			Opportunity: o,
			Score:       score,
			Key:         KeyFor(q.Sort, o, score, q.SnapshotTs),
		})
	}

	slices.SortFunc(candidates, func(a, b Candidate) int { return a.Key.Compare(b.Key) })

	start := 0
	if q.After != nil {
		after := *q.After
		start = sort.Search(len(candidates), func(i int) bool { return after.Before(candidates[i].Key) })
	}
	end := min(start+q.Limit, len(candidates))
	return candidates[start:end], nil
}

// RoutingSource serves cold recommended sessions from precomputed ranks and everything else live
type RoutingSource struct {
	ranked CandidateSource
	live   CandidateSource
	logger *slog.Logger
}

// NewRoutingSource creates a router. A nil ranked source routes everything live.
func NewRoutingSource(ranked, live CandidateSource, logger *slog.Logger) *RoutingSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutingSource{ranked: ranked, live: live, logger: logger}
}

// Fetch implements CandidateSource. A session stays on the scoring basis of its first page:
// pinned to its generation, or live when it started without one.
func (r *RoutingSource) Fetch(ctx context.Context, q Query) ([]Candidate, error) {
	if q.Generation != 0 {
		if r.ranked == nil {
			return nil, fmt.Errorf("%w: ranked reads are disabled", ErrRankGenerationGone)
		}
		return r.ranked.Fetch(ctx, q)
	}
	if r.ranked == nil || q.Sort != SortRecommended || q.Personalized || q.After != nil {
		return r.live.Fetch(ctx, q)
	}

	candidates, err := r.ranked.Fetch(ctx, q)
	if errors.Is(err, ErrNoRankSnapshot) {
		r.logger.DebugContext(ctx, "No rank snapshot for session, scoring live",
			slog.Time("snapshot", q.SnapshotTs),
		)
		return r.live.Fetch(ctx, q)
	}
	return candidates, err
}
