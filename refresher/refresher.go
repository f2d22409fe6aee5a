// Package refresher materialises cold-start rankings into immutable rank generations.
package refresher

import (
	"context"
	"errors"
	"time"

	"github.com/screwyprof/oppfeed/feed"
)

// Sentinel errors for failure cases
var (
	ErrCatalogRead    = errors.New("catalog read failed")
	ErrSaveGeneration = errors.New("save rank generation failed")
	ErrPrune          = errors.New("prune rank generations failed")
)

// Default configuration values
const (
	DefaultInterval          = time.Minute
	DefaultRetainGenerations = 6
	DefaultCatalogCeiling    = 50000
)

// Rank is the precomputed cold score of one opportunity version
type Rank struct {
	OpportunityID    string
	VersionUpdatedAt time.Time
	Score            feed.RankScore
}

// Generation is one immutable ranking of the catalog as of RefreshedAt
type Generation struct {
	RefreshedAt time.Time
	Ranks       []Rank
}

// Store persists rank generations
type Store interface {
	// SaveGeneration writes the generation atomically and returns its id
	SaveGeneration(ctx context.Context, g Generation) (int64, error)
	// PruneGenerations deletes all but the newest retain generations
	PruneGenerations(ctx context.Context, retain int) (int64, error)
}

// Clock abstracts time for production and testing
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// Event represents a service lifecycle event
type Event any

type RefreshStarted struct {
	StartedAt time.Time
}

type GenerationSaved struct {
	GenerationID int64
	RefreshedAt  time.Time
	Items        int
	Pruned       int64
	Duration     time.Duration
}

type RefreshError struct {
	Err error
}

type ScheduleStarted struct {
	Interval time.Duration
}

type ScheduleShutdown struct {
	Reason error // ctx.Err() at shutdown
}
