//go:build acceptance

package migrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/migrator/migratortest"
)

func TestSeededDatabase(t *testing.T) {
	t.Parallel()

	t.Run("it seeds the catalog wallets and one rank generation", func(t *testing.T) {
		t.Parallel()

		// Arrange
		pool := migratortest.CreateSeededTestDatabase(t, "migrations")

		// Act
		var versions, generations, ranks, wallets int
		err := pool.QueryRow(t.Context(), `SELECT
			(SELECT count(*) FROM opportunity_versions),
			(SELECT count(*) FROM rank_generations),
			(SELECT count(*) FROM opportunity_ranks),
			(SELECT count(*) FROM wallet_preferences)`).Scan(&versions, &generations, &ranks, &wallets)

		// Assert
		require.NoError(t, err)
		assert.Greater(t, versions, migratortest.DemoItems)
		assert.Equal(t, 1, generations)
		assert.Equal(t, migratortest.DemoItems, ranks)
		assert.Equal(t, 2, wallets)
	})

	t.Run("it applies the schema only", func(t *testing.T) {
		t.Parallel()

		// Arrange
		pool := migratortest.CreateSchemaTestDatabase(t, "migrations")

		// Act
		var versions int
		err := pool.QueryRow(t.Context(), "SELECT count(*) FROM opportunity_versions").Scan(&versions)

		// Assert
		require.NoError(t, err)
		assert.Zero(t, versions)
	})
}
