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

// SQL queries
const (
	preferredChainsSQL = `SELECT preferred_chains FROM wallet_preferences WHERE wallet = $1`

	completionsSQL = `
		SELECT opportunity_id, type, chains, completed_at AS at
		FROM wallet_completions
		WHERE wallet = $1
		ORDER BY completed_at DESC, opportunity_id
		LIMIT $2`

	savesSQL = `
		SELECT opportunity_id, type, chains, saved_at AS at
		FROM wallet_saves
		WHERE wallet = $1
		ORDER BY saved_at DESC, opportunity_id
		LIMIT $2`
)

var ErrHistoryQueryFailed = errors.New("wallet history query failed")

// HistoryStore implements feed.HistoryStore over the wallet activity tables
type HistoryStore struct {
	pool *pgxpool.Pool
}

var _ feed.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore creates a wallet history reader with an existing connection pool
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// WalletActivity reads the preferred chains and the latest limit completions and saves of wallet
func (s *HistoryStore) WalletActivity(ctx context.Context, wallet string, limit int) (feed.WalletActivity, error) {
	var activity feed.WalletActivity

	err := s.pool.QueryRow(ctx, preferredChainsSQL, wallet).Scan(&activity.PreferredChains)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return feed.WalletActivity{}, fmt.Errorf("%w: %w", ErrHistoryQueryFailed, err)
	}

	if activity.Completed, err = s.activity(ctx, completionsSQL, wallet, limit); err != nil {
		return feed.WalletActivity{}, err
	}
	if activity.Saved, err = s.activity(ctx, savesSQL, wallet, limit); err != nil {
		return feed.WalletActivity{}, err
	}

	return activity, nil
}

func (s *HistoryStore) activity(ctx context.Context, query, wallet string, limit int) ([]feed.Activity, error) {
	rows, err := s.pool.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Activity])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryQueryFailed, err)
	}

	activity := make([]feed.Activity, len(dbRows))
	for i, row := range dbRows {
		activity[i] = row.ToDomain()
	}
	return activity, nil
}
