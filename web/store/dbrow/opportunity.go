package dbrow

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/oppfeed/feed"
)

// Opportunity represents one opportunity version as queried from the database
type Opportunity struct {
	ID          string          `db:"id"`
	Type        string          `db:"type"`
	Title       string          `db:"title"`
	Protocol    string          `db:"protocol"`
	Chains      []string        `db:"chains"`
	TrustScore  int             `db:"trust_score"`
	PublishedAt time.Time       `db:"published_at"`
	ExpiresAt   *time.Time      `db:"expires_at"`
	Urgency     []string        `db:"urgency"`
	Difficulty  string          `db:"difficulty"`
	RewardMin   pgtype.Numeric  `db:"reward_min"`
	RewardMax   pgtype.Numeric  `db:"reward_max"`
	Sponsored   bool            `db:"sponsored"`
	Featured    bool            `db:"featured"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// ToDomain converts the row to the feed model
func (o Opportunity) ToDomain() feed.Opportunity {
	urgency := make([]feed.Urgency, len(o.Urgency))
	for i, u := range o.Urgency {
		urgency[i] = feed.Urgency(u)
	}

	return feed.Opportunity{
		ID:          o.ID,
		Type:        feed.Type(o.Type),
		Title:       o.Title,
		Protocol:    o.Protocol,
		Chains:      o.Chains,
		TrustScore:  o.TrustScore,
		PublishedAt: o.PublishedAt.UTC(),
		ExpiresAt:   utcPtr(o.ExpiresAt),
		Urgency:     urgency,
		Difficulty:  feed.Difficulty(o.Difficulty),
		RewardMin:   ToDecimal(o.RewardMin),
		RewardMax:   ToDecimal(o.RewardMax),
		Sponsored:   o.Sponsored,
		Featured:    o.Featured,
		UpdatedAt:   o.UpdatedAt.UTC(),
	}
}

// RankedOpportunity is an opportunity version joined with its precomputed score
type RankedOpportunity struct {
	Opportunity
	Relevance float64 `db:"relevance"`
	Trust     float64 `db:"trust"`
	Freshness float64 `db:"freshness"`
	Total     float64 `db:"total"`
}

// ToCandidate converts the row to a candidate keyed by its stored total
func (r RankedOpportunity) ToCandidate() feed.Candidate {
	o := r.ToDomain()
	score := feed.RankScore{
		Relevance: r.Relevance,
		Trust:     r.Trust,
		Freshness: r.Freshness,
		Total:     r.Total,
	}
	return feed.Candidate{
		Opportunity: o,
		Score:       score,
		Key: feed.SortKey{
			Primary:   r.Total,
			Trust:     o.TrustScore,
			ExpiresAt: o.ExpiresAt,
			ID:        o.ID,
		},
	}
}

// Activity is one completion or save of a wallet
type Activity struct {
	OpportunityID string    `db:"opportunity_id"`
	Type          string    `db:"type"`
	Chains        []string  `db:"chains"`
	At            time.Time `db:"at"`
}

// ToDomain converts the row to the feed model
func (a Activity) ToDomain() feed.Activity {
	return feed.Activity{
		OpportunityID: a.OpportunityID,
		Type:          feed.Type(a.Type),
		Chains:        a.Chains,
		At:            a.At.UTC(),
	}
}

// OpportunitiesToRows converts opportunities to [][]any for pgx.CopyFromRows.
// The column order matches OpportunityColumns.
func OpportunitiesToRows(items []feed.Opportunity) [][]any {
	rows := make([][]any, len(items))

	for i, o := range items {
		urgency := make([]string, len(o.Urgency))
		for j, u := range o.Urgency {
			urgency[j] = string(u)
		}
		chains := o.Chains
		if chains == nil {
			chains = []string{}
		}

		rows[i] = []any{
			o.ID,
			string(o.Type),
			o.Title,
			o.Protocol,
			chains,
			o.TrustScore,
			o.PublishedAt,
			o.ExpiresAt,
			urgency,
			string(o.Difficulty),
			ToNumeric(o.RewardMin),
			ToNumeric(o.RewardMax),
			o.Sponsored,
			o.Featured,
			o.UpdatedAt,
		}
	}

	return rows
}

// OpportunityColumns lists the opportunity_versions columns in OpportunitiesToRows order
var OpportunityColumns = []string{
	"id", "type", "title", "protocol", "chains", "trust_score", "published_at", "expires_at",
	"urgency", "difficulty", "reward_min", "reward_max", "sponsored", "featured", "updated_at",
}

// ToNumeric converts a decimal to its Postgres numeric representation
func ToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// ToDecimal converts a Postgres numeric to a decimal; NULL and NaN become zero
func ToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
