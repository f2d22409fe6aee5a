package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/oppfeed/refresher"
)

// Sentinel errors for store operations
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrInsertFailed      = errors.New("insert operation failed")
	ErrCopyFailed        = errors.New("bulk copy operation failed")
	ErrPruneFailed       = errors.New("prune operation failed")
)

// SQL queries
const (
	insertGenerationSQL = `
		INSERT INTO rank_generations (refreshed_at, item_count)
		VALUES ($1, $2)
		RETURNING id`

	pruneGenerationsSQL = `
		DELETE FROM rank_generations
		WHERE id NOT IN (
			SELECT id FROM rank_generations ORDER BY refreshed_at DESC LIMIT $1
		)`
)

var rankColumns = []string{
	"generation_id", "opportunity_id", "version_updated_at", "relevance", "trust", "freshness", "total",
}

// Store implements refresher.Store using pgx
type Store struct {
	pool *pgxpool.Pool
}

var _ refresher.Store = (*Store)(nil)

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// SaveGeneration writes the generation header and bulk copies its ranks in one transaction
func (s *Store) SaveGeneration(ctx context.Context, g refresher.Generation) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	var id int64
	if err := tx.QueryRow(ctx, insertGenerationSQL, g.RefreshedAt, len(g.Ranks)).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"opportunity_ranks"},
		rankColumns,
		pgx.CopyFromSlice(len(g.Ranks), func(i int) ([]any, error) {
			r := g.Ranks[i]
			return []any{id, r.OpportunityID, r.VersionUpdatedAt, r.Score.Relevance, r.Score.Trust, r.Score.Freshness, r.Score.Total}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	return id, nil
}

// PruneGenerations deletes all but the newest retain generations; their ranks cascade
func (s *Store) PruneGenerations(ctx context.Context, retain int) (int64, error) {
	tag, err := s.pool.Exec(ctx, pruneGenerationsSQL, retain)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPruneFailed, err)
	}
	return tag.RowsAffected(), nil
}
