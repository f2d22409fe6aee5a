package api

import "github.com/shopspring/decimal"

// OpportunitiesRequest represents the query parameters for GET /v1/opportunities
type OpportunitiesRequest struct {
	Types           []string         `query:"types"`      // Comma-separated opportunity types
	Chains          []string         `query:"chains"`     // Comma-separated chains, any match
	Urgency         []string         `query:"urgency"`    // Comma-separated urgency flags, any match
	Difficulty      []string         `query:"difficulty"` // Comma-separated difficulties
	TrustMin        *int             `query:"trust_min"`
	IncludeLowTrust bool             `query:"include_low_trust"`
	RewardMin       *decimal.Decimal `query:"reward_min"`
	RewardMax       *decimal.Decimal `query:"reward_max"`
	Search          string           `query:"search"`
	Sort            string           `query:"sort"`
	Cursor          string           `query:"cursor"`
	Wallet          string           `query:"wallet"`
	Limit           int              `query:"limit"` // 1..50, default 12
}

// Score is the ranking breakdown of one item
type Score struct {
	Relevance float64 `json:"relevance"`
	Trust     float64 `json:"trust"`
	Freshness float64 `json:"freshness"`
	Total     float64 `json:"total"`
}

// Opportunity is one feed card
type Opportunity struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Protocol    string          `json:"protocol"`
	Chains      []string        `json:"chains"`
	TrustScore  int             `json:"trust_score"`
	TrustLevel  string          `json:"trust_level"`
	RewardMin   decimal.Decimal `json:"reward_min"`
	RewardMax   decimal.Decimal `json:"reward_max"`
	Urgency     []string        `json:"urgency"`
	Difficulty  string          `json:"difficulty"`
	Sponsored   bool            `json:"sponsored"`
	Featured    bool            `json:"featured"`
	PublishedAt string          `json:"published_at"`
	ExpiresAt   *string         `json:"expires_at"`
	Score       Score           `json:"score"`
}

// OpportunitiesResponse represents the API response format for GET /v1/opportunities
type OpportunitiesResponse struct {
	Items        []Opportunity `json:"items"`
	NextCursor   *string       `json:"next_cursor"`
	SnapshotTs   int64         `json:"snapshot_ts"` // Unix milliseconds
	Personalized bool          `json:"personalized"`
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status string `json:"status"`
}
