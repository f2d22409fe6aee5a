package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed = errors.New("opportunity query failed")
)

// Catalog implements feed.Catalog over the versioned opportunity table
type Catalog struct {
	pool *pgxpool.Pool
}

var _ feed.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog reader with an existing connection pool
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Candidates returns the newest version of each matching opportunity as of snapshot,
// at most limit rows, most trusted first
func (c *Catalog) Candidates(ctx context.Context, f feed.Filters, snapshot time.Time, limit int) ([]feed.Opportunity, error) {
	query, args := NewCatalogQuery(snapshot).
		ForFilters(f, snapshot).
		OrderByTrust().
		Limit(limit).
		Build()

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Opportunity])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	items := make([]feed.Opportunity, len(dbRows))
	for i, row := range dbRows {
		items[i] = row.ToDomain()
	}
	return items, nil
}
