package migratortest

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/migrator"
)

// Demo seed defaults shared by the acceptance suites
const (
	DemoItems       = 60
	DemoSeedTimeout = 30 * time.Second
)

// CreateSchemaTestDatabase creates an empty test database with migrations applied.
// Returns the connection pool ready for use.
func CreateSchemaTestDatabase(t *testing.T, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	return createTestDatabaseWithMigrator(t, migrator.NewSchemaMigrator(migrationsDir))
}

// CreateSeededTestDatabase creates a test database with migrations, the demo catalog,
// demo wallet activity and one rank generation.
// Returns the connection pool ready for use.
func CreateSeededTestDatabase(t *testing.T, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	migratorInstance := migrator.NewSeededMigrator(migrationsDir, DemoItems, DemoSeedTimeout)
	return createTestDatabaseWithMigrator(t, migratorInstance)
}

// createTestDatabaseWithMigrator creates a test database using the provided migrator
func createTestDatabaseWithMigrator(t *testing.T, migratorInstance pgtestdb.Migrator) *pgxpool.Pool {
	t.Helper()

	config := createTestDatabaseConfig()

	// Create test database and get its config
	dbConfig := pgtestdb.Custom(t, config, migratorInstance)

	// Connect to the test database using test context for proper lifecycle management
	pool, err := pgxpool.New(t.Context(), dbConfig.URL())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	t.Logf("testdbconf: %s", dbConfig.URL())

	return pool
}

// createTestDatabaseConfig creates the standard pgtestdb configuration for oppfeed tests
func createTestDatabaseConfig() pgtestdb.Config {
	return pgtestdb.Config{
		DriverName: "pgx",
		User:       "oppfeed",
		Password:   "oppfeed",
		Host:       "localhost",
		Port:       "5432",
		Options:    "sslmode=disable",
	}
}
