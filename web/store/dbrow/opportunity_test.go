package dbrow_test

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/store/dbrow"
)

func TestNumericConversion(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"0", "12.5", "1000000.01", "0.000001"} {
		// Arrange
		d := decimal.RequireFromString(raw)

		// Act
		got := dbrow.ToDecimal(dbrow.ToNumeric(d))

		// Assert
		assert.True(t, d.Equal(got), "%s became %s", raw, got)
	}

	t.Run("it reads NULL as zero", func(t *testing.T) {
		t.Parallel()

		// Act & Assert
		assert.True(t, dbrow.ToDecimal(pgtype.Numeric{}).IsZero())
	})
}

func TestRankedOpportunityToCandidate(t *testing.T) {
	t.Parallel()

	// Arrange
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	row := dbrow.RankedOpportunity{
		Opportunity: dbrow.Opportunity{
			ID:         "opp-1",
			Type:       "quest",
			TrustScore: 88,
			ExpiresAt:  &expires,
			Urgency:    []string{"hot"},
			Difficulty: "easy",
			RewardMin:  dbrow.ToNumeric(decimal.NewFromInt(5)),
			RewardMax:  dbrow.ToNumeric(decimal.NewFromInt(50)),
		},
		Relevance: 0.3,
		Trust:     0.88,
		Freshness: 0.5,
		Total:     0.61,
	}

	// Act
	c := row.ToCandidate()

	// Assert
	assert.Equal(t, feed.TypeQuest, c.Opportunity.Type)
	assert.Equal(t, []feed.Urgency{feed.UrgencyHot}, c.Opportunity.Urgency)
	assert.True(t, decimal.NewFromInt(50).Equal(c.Opportunity.RewardMax))
	assert.InDelta(t, 0.61, c.Score.Total, 1e-12)
	assert.Equal(t, 0.61, c.Key.Primary)
	assert.Equal(t, 88, c.Key.Trust)
	assert.Equal(t, "opp-1", c.Key.ID)
	require.NotNil(t, c.Key.ExpiresAt)
	assert.Equal(t, time.UTC, c.Key.ExpiresAt.Location())
	assert.True(t, expires.Equal(*c.Key.ExpiresAt))
}

func TestOpportunitiesToRows(t *testing.T) {
	t.Parallel()

	// Arrange
	items := []feed.Opportunity{{ID: "a", Type: feed.TypeYield, Urgency: []feed.Urgency{feed.UrgencyNew}}}

	// Act
	rows := dbrow.OpportunitiesToRows(items)

	// Assert
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(dbrow.OpportunityColumns))
	assert.Equal(t, "a", rows[0][0])
	assert.Equal(t, "yield", rows[0][1])
	assert.Equal(t, []string{}, rows[0][4])
	assert.Equal(t, []string{"new"}, rows[0][8])
}
