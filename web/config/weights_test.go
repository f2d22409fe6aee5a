package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/config"
)

func TestLoadWeights(t *testing.T) {
	t.Parallel()

	t.Run("it returns defaults without a file", func(t *testing.T) {
		t.Parallel()

		// Act
		w, err := config.LoadWeights("")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, feed.DefaultWeights(), w)
	})

	t.Run("it overlays the file on the defaults", func(t *testing.T) {
		t.Parallel()

		// Arrange
		path := filepath.Join(t.TempDir(), "weights.yaml")
		content := "relevance: 0.5\ntrust: 0.3\nfreshness: 0.2\nfreshness_half_life: 48h\nhot_bonus: 0.25\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		// Act
		w, err := config.LoadWeights(path)

		// Assert
		require.NoError(t, err)
		assert.InDelta(t, 0.5, w.Relevance, 1e-9)
		assert.InDelta(t, 0.3, w.Trust, 1e-9)
		assert.Equal(t, 48*time.Hour, w.FreshnessHalfLife)
		assert.InDelta(t, 0.25, w.HotBonus, 1e-9)
		assert.InDelta(t, feed.DefaultWeights().ChainMatch, w.ChainMatch, 1e-9)
	})

	t.Run("it fails for a missing file", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := config.LoadWeights(filepath.Join(t.TempDir(), "absent.yaml"))

		// Assert
		require.ErrorIs(t, err, config.ErrWeightsFile)
	})
}

func TestParseWeights(t *testing.T) {
	t.Parallel()

	t.Run("it accepts an empty document", func(t *testing.T) {
		t.Parallel()

		// Act
		w, err := config.ParseWeights(nil)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, feed.DefaultWeights(), w)
	})

	testCases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "unknown keys", raw: "relevence: 0.6\n", want: config.ErrWeightsFile},
		{name: "malformed yaml", raw: "relevance: [\n", want: config.ErrWeightsFile},
		{name: "blend not summing to one", raw: "relevance: 0.9\n", want: feed.ErrInvalidWeights},
	}

	for _, tc := range testCases {
		t.Run("it rejects "+tc.name, func(t *testing.T) {
			t.Parallel()

			// Act
			_, err := config.ParseWeights([]byte(tc.raw))

			// Assert
			require.ErrorIs(t, err, tc.want)
		})
	}
}
