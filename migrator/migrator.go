package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/pkg/pgxdb"
	"github.com/screwyprof/oppfeed/refresher"
	refresherstore "github.com/screwyprof/oppfeed/refresher/store/pgxstore"
	"github.com/screwyprof/oppfeed/web/store/pgxstore"
)

// Migration constants
const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "schema_only_"
	seededHashPrefix    = "seeded_demo_"
)

// Migration-related errors
var (
	ErrMigrationExecution = errors.New("migration execution failed")
	ErrSeedFailed         = errors.New("demo seed failed")
)

// SchemaMigrator applies only database schema migrations
// Used for production and tests that need schema-only setup
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator that applies schema migrations only
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}
	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	return applyMigrations(db, m.migrationsDir)
}

// SeededMigrator applies schema migrations, seeds a demo catalog with wallet activity
// and materialises one rank generation over it
type SeededMigrator struct {
	migrationsDir string
	items         int
	seedTimeout   time.Duration
}

// NewSeededMigrator creates a migrator that applies schema + seeds demo data
func NewSeededMigrator(migrationsDir string, items int, seedTimeout time.Duration) *SeededMigrator {
	return &SeededMigrator{
		migrationsDir: migrationsDir,
		items:         items,
		seedTimeout:   seedTimeout,
	}
}

func (m *SeededMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}
	return seededHashPrefix + baseHash + "_" + strconv.Itoa(m.items), nil
}

func (m *SeededMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	if err := applyMigrations(db, m.migrationsDir); err != nil {
		return err
	}
	return m.seedDemoData(ctx, conf.URL())
}

// seedDemoData seeds the template database with the demo data
func (m *SeededMigrator) seedDemoData(ctx context.Context, dbURL string) error {
	seedCtx, cancel := context.WithTimeout(ctx, m.seedTimeout)
	defer cancel()

	pool, err := pgxdb.NewConnection(seedCtx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, err = SeedDemo(seedCtx, pool, m.items)
	return err
}

// SeedDemo loads the demo catalog and wallet activity, then materialises one rank generation.
// Re-running it keeps existing rows and adds a fresh generation.
func SeedDemo(ctx context.Context, pool *pgxpool.Pool, items int) (refresher.GenerationSaved, error) {
	slog.InfoContext(ctx, "Seeding demo data", slog.Int("items", items))

	if err := SeedCatalog(ctx, pool, DemoCatalog(items)); err != nil {
		return refresher.GenerationSaved{}, err
	}
	if err := SeedWalletActivity(ctx, pool, DemoWallets()); err != nil {
		return refresher.GenerationSaved{}, err
	}

	store, _ := refresherstore.New(pool) // closed with the pool
	service := refresher.NewService(
		pgxstore.NewCatalog(pool),
		feed.NewScoreCalculator(feed.DefaultWeights()),
		store,
	)
	saved, err := service.Refresh(ctx)
	if err != nil {
		return refresher.GenerationSaved{}, fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}

	slog.InfoContext(ctx, "Demo data seeded",
		slog.Int64("generation", saved.GenerationID),
		slog.Int("ranked", saved.Items),
	)
	return saved, nil
}

// ApplyMigrations applies database migrations using sql-migrate with the provided pgx pool
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) error {
	// sql-migrate needs a database/sql handle
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

// applyMigrations applies database migrations using sql-migrate
func applyMigrations(db *sql.DB, migrationsDir string) error {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	_, err := migrationSet.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return nil
}

func migrationsHash(migrationsDir string) (string, error) {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	hash, err := sqlmigrator.New(source, migrationSet).Hash()
	if err != nil {
		return "", fmt.Errorf("failed to calculate migration hash for %s: %w", migrationsDir, err)
	}
	return hash, nil
}
