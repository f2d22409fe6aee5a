package pgxstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/store/dbrow"
)

// SQL queries
const (
	opportunityColumns = "o.id, o.type, o.title, o.protocol, o.chains, o.trust_score, o.published_at, o.expires_at, " +
		"o.urgency, o.difficulty, o.reward_min, o.reward_max, o.sponsored, o.featured, o.updated_at"

	// newest version of every opportunity as of the snapshot bound to $1
	catalogBaseQuery = "SELECT " + opportunityColumns + " FROM (" +
		"SELECT DISTINCT ON (id) * FROM opportunity_versions WHERE updated_at <= ? ORDER BY id, updated_at DESC" +
		") o"

	rankedBaseQuery = "SELECT " + opportunityColumns + ", r.relevance, r.trust, r.freshness, r.total" +
		" FROM opportunity_ranks r" +
		" JOIN opportunity_versions o ON o.id = r.opportunity_id AND o.updated_at = r.version_updated_at"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// OpportunityQueryBuilder provides a small DSL for building feed queries.
// Clauses use ? markers which are numbered into $n placeholders as they are added.
type OpportunityQueryBuilder struct {
	sql      strings.Builder
	args     []any
	hasWhere bool
}

// NewCatalogQuery starts a query over the catalog as of snapshot
func NewCatalogQuery(snapshot time.Time) *OpportunityQueryBuilder {
	q := &OpportunityQueryBuilder{}
	q.write(catalogBaseQuery, snapshot)
	return q
}

// NewRankedQuery starts a query over one rank generation
func NewRankedQuery(generationID int64) *OpportunityQueryBuilder {
	q := &OpportunityQueryBuilder{}
	q.write(rankedBaseQuery)
	q.addWhereCondition("r.generation_id = ?", generationID)
	return q
}

// ForFilters applies every filter predicate and hides items expired at snapshot
func (q *OpportunityQueryBuilder) ForFilters(f feed.Filters, snapshot time.Time) *OpportunityQueryBuilder {
	q.addWhereCondition("(o.expires_at IS NULL OR o.expires_at > ?)", snapshot)

	if f.TrustMin > 0 {
		q.addWhereCondition("o.trust_score >= ?", f.TrustMin)
	}
	if len(f.Types) > 0 {
		q.addWhereCondition("o.type = ANY(?)", toStrings(f.Types))
	}
	if len(f.Chains) > 0 {
		q.addWhereCondition("EXISTS (SELECT 1 FROM unnest(o.chains) AS c(name) WHERE lower(c.name) = ANY(?))", f.Chains)
	}
	if len(f.Urgency) > 0 {
		q.addWhereCondition("o.urgency && ?::text[]", toStrings(f.Urgency))
	}
	if len(f.Difficulty) > 0 {
		q.addWhereCondition("o.difficulty = ANY(?)", toStrings(f.Difficulty))
	}
	if f.RewardMin != nil {
		q.addWhereCondition("o.reward_max >= ?", dbrow.ToNumeric(*f.RewardMin))
	}
	if f.RewardMax != nil {
		q.addWhereCondition("o.reward_min <= ?", dbrow.ToNumeric(*f.RewardMax))
	}
	if f.Search != "" {
		pattern := "%" + likeEscaper.Replace(f.Search) + "%"
		q.addWhereCondition("(o.title ILIKE ? OR o.protocol ILIKE ?)", pattern, pattern)
	}

	return q
}

// After keeps only rows strictly after key in rank order:
// total desc, trust desc, expiry asc with nulls last, id asc.
func (q *OpportunityQueryBuilder) After(key *feed.SortKey) *OpportunityQueryBuilder {
	if key == nil {
		return q
	}

	if key.ExpiresAt == nil {
		q.addWhereCondition("(r.total < ? OR (r.total = ? AND (o.trust_score < ? OR "+
			"(o.trust_score = ? AND o.expires_at IS NULL AND o.id > ?))))",
			key.Primary, key.Primary, key.Trust, key.Trust, key.ID)
		return q
	}

	q.addWhereCondition("(r.total < ? OR (r.total = ? AND (o.trust_score < ? OR "+
		"(o.trust_score = ? AND (o.expires_at > ? OR o.expires_at IS NULL OR (o.expires_at = ? AND o.id > ?))))))",
		key.Primary, key.Primary, key.Trust, key.Trust, *key.ExpiresAt, *key.ExpiresAt, key.ID)
	return q
}

// OrderByRank orders by the feed total order
func (q *OpportunityQueryBuilder) OrderByRank() *OpportunityQueryBuilder {
	q.write(" ORDER BY r.total DESC, o.trust_score DESC, o.expires_at ASC NULLS LAST, o.id ASC")
	return q
}

// OrderByTrust orders catalog rows so a row ceiling always keeps the same, most trusted rows
func (q *OpportunityQueryBuilder) OrderByTrust() *OpportunityQueryBuilder {
	q.write(" ORDER BY o.trust_score DESC, o.id ASC")
	return q
}

// Limit caps the number of rows
func (q *OpportunityQueryBuilder) Limit(n int) *OpportunityQueryBuilder {
	q.write(" LIMIT ?", n)
	return q
}

// Build returns the final SQL query and arguments
func (q *OpportunityQueryBuilder) Build() (string, []any) {
	return q.sql.String(), q.args
}

// addWhereCondition adds a WHERE condition, handling AND logic automatically
func (q *OpportunityQueryBuilder) addWhereCondition(clause string, values ...any) {
	if q.hasWhere {
		q.write(" AND "+clause, values...)
		return
	}
	q.hasWhere = true
	q.write(" WHERE "+clause, values...)
}

// write appends clause numbering each ? marker with the next placeholder
func (q *OpportunityQueryBuilder) write(clause string, values ...any) {
	for _, part := range strings.SplitAfter(clause, "?") {
		if !strings.HasSuffix(part, "?") {
			q.sql.WriteString(part)
			continue
		}
		q.sql.WriteString(part[:len(part)-1])
		q.sql.WriteString("$" + strconv.Itoa(q.nextPlaceholder()))
		q.args = append(q.args, values[0])
		values = values[1:]
	}
}

// nextPlaceholder returns the next PostgreSQL placeholder number
func (q *OpportunityQueryBuilder) nextPlaceholder() int {
	return len(q.args) + 1
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
