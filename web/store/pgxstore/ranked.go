package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/store/dbrow"
)

const generationAsOfSQL = `
	SELECT id FROM rank_generations
	WHERE refreshed_at <= $1
	ORDER BY refreshed_at DESC
	LIMIT 1`

const generationExistsSQL = `SELECT EXISTS (SELECT 1 FROM rank_generations WHERE id = $1)`

// RankedSource serves cold recommended sessions from the newest rank generation
// refreshed at or before the session snapshot. Continuing sessions read the
// generation they started on. Keyset paging happens in SQL.
type RankedSource struct {
	pool *pgxpool.Pool
}

var _ feed.CandidateSource = (*RankedSource)(nil)

// NewRankedSource creates a ranked source with an existing connection pool
func NewRankedSource(pool *pgxpool.Pool) *RankedSource {
	return &RankedSource{pool: pool}
}

// Fetch implements feed.CandidateSource. It returns feed.ErrNoRankSnapshot when no
// generation is old enough for a new session and feed.ErrRankGenerationGone when
// the pinned generation was pruned.
func (s *RankedSource) Fetch(ctx context.Context, q feed.Query) ([]feed.Candidate, error) {
	generationID := q.Generation
	if generationID == 0 {
		err := s.pool.QueryRow(ctx, generationAsOfSQL, q.SnapshotTs).Scan(&generationID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, feed.ErrNoRankSnapshot
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w: %w", feed.ErrCatalogUnavailable, ErrQueryFailed, err)
		}
	}

	query, args := NewRankedQuery(generationID).
		ForFilters(q.Filters, q.SnapshotTs).
		After(q.After).
		OrderByRank().
		Limit(q.Limit).
		Build()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", feed.ErrCatalogUnavailable, ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.RankedOpportunity])
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", feed.ErrCatalogUnavailable, ErrQueryFailed, err)
	}

	// Pruning cascades to the ranks, so an empty read may mean the generation is gone.
	if q.Generation != 0 && len(dbRows) < q.Limit {
		if err := s.ensureGeneration(ctx, q.Generation); err != nil {
			return nil, err
		}
	}

	candidates := make([]feed.Candidate, len(dbRows))
	for i, row := range dbRows {
		candidates[i] = row.ToCandidate()
		candidates[i].Generation = generationID
	}
	return candidates, nil
}

func (s *RankedSource) ensureGeneration(ctx context.Context, id int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, generationExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("%w: %w: %w", feed.ErrCatalogUnavailable, ErrQueryFailed, err)
	}
	if !exists {
		return fmt.Errorf("%w: generation %d", feed.ErrRankGenerationGone, id)
	}
	return nil
}
