package feed

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidWeights is returned when a weight set does not describe a valid blend
var ErrInvalidWeights = errors.New("invalid scoring weights")

const weightTolerance = 1e-9

// Weights holds every tunable constant of the scoring blend
type Weights struct {
	// Total blend
	Relevance float64 `yaml:"relevance"`
	Trust     float64 `yaml:"trust"`
	Freshness float64 `yaml:"freshness"`

	// Relevance blend
	ChainMatch      float64 `yaml:"chain_match"`
	TypeMatch       float64 `yaml:"type_match"`
	CompletionCount float64 `yaml:"completion_count"`
	SaveCount       float64 `yaml:"save_count"`

	// Relevance sub-scores
	PreferredChain       float64 `yaml:"preferred_chain"`
	HistoryChainFloor    float64 `yaml:"history_chain_floor"`
	UnknownChain         float64 `yaml:"unknown_chain"`
	CompletedType        float64 `yaml:"completed_type"`
	SavedType            float64 `yaml:"saved_type"`
	UnknownType          float64 `yaml:"unknown_type"`
	CompletionCeiling    float64 `yaml:"completion_ceiling"`
	SaveCeiling          float64 `yaml:"save_ceiling"`
	EngagementSaturation int     `yaml:"engagement_saturation"`

	// Cold start
	ColdStart      float64 `yaml:"cold_start"`
	ColdStartBoost float64 `yaml:"cold_start_boost"`

	// Freshness
	FreshnessHalfLife time.Duration `yaml:"freshness_half_life"`
	NeutralFreshness  float64       `yaml:"neutral_freshness"`
	NewBonus          float64       `yaml:"new_bonus"`
	EndingSoonBonus   float64       `yaml:"ending_soon_bonus"`
	HotBonus          float64       `yaml:"hot_bonus"`
}

// DefaultWeights returns the production blend
func DefaultWeights() Weights {
	return Weights{
		Relevance: 0.6,
		Trust:     0.25,
		Freshness: 0.15,

		ChainMatch:      0.4,
		TypeMatch:       0.3,
		CompletionCount: 0.2,
		SaveCount:       0.1,

		PreferredChain:       1.0,
		HistoryChainFloor:    0.7,
		UnknownChain:         0.3,
		CompletedType:        1.0,
		SavedType:            0.7,
		UnknownType:          0.5,
		CompletionCeiling:    1.0,
		SaveCeiling:          0.8,
		EngagementSaturation: 5,

		ColdStart:      0.5,
		ColdStartBoost: 0.1,

		FreshnessHalfLife: 72 * time.Hour,
		NeutralFreshness:  0.5,
		NewBonus:          0.1,
		EndingSoonBonus:   0.2,
		HotBonus:          0.15,
	}
}

// Validate checks both blends sum to one and every constant is in range
func (w Weights) Validate() error {
	if !sumsToOne(w.Relevance, w.Trust, w.Freshness) {
		return fmt.Errorf("%w: relevance, trust and freshness must sum to 1", ErrInvalidWeights)
	}
	if !sumsToOne(w.ChainMatch, w.TypeMatch, w.CompletionCount, w.SaveCount) {
		return fmt.Errorf("%w: relevance sub-weights must sum to 1", ErrInvalidWeights)
	}
	for _, v := range []float64{
		w.PreferredChain, w.HistoryChainFloor, w.UnknownChain,
		w.CompletedType, w.SavedType, w.UnknownType,
		w.CompletionCeiling, w.SaveCeiling,
		w.ColdStart, w.ColdStartBoost, w.NeutralFreshness,
		w.NewBonus, w.EndingSoonBonus, w.HotBonus,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %v is outside [0,1]", ErrInvalidWeights, v)
		}
	}
	if w.EngagementSaturation <= 0 {
		return fmt.Errorf("%w: engagement saturation must be positive", ErrInvalidWeights)
	}
	if w.FreshnessHalfLife <= 0 {
		return fmt.Errorf("%w: freshness half-life must be positive", ErrInvalidWeights)
	}
	return nil
}

func sumsToOne(values ...float64) bool {
	var sum float64
	for _, v := range values {
		if v < 0 {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) < weightTolerance
}

// RankScore is the score breakdown of one opportunity
type RankScore struct {
	Relevance float64
	Trust     float64
	Freshness float64
	Total     float64
}

// ScoreCalculator blends trust, freshness and relevance. It is pure and safe for concurrent use.
type ScoreCalculator struct {
	w Weights
}

// NewScoreCalculator creates a calculator with the given weights
func NewScoreCalculator(w Weights) *ScoreCalculator {
	return &ScoreCalculator{w: w}
}

// Score ranks o as of asOf. A nil history means cold start.
func (c *ScoreCalculator) Score(o Opportunity, h *WalletHistory, asOf time.Time) RankScore {
	s := RankScore{
		Relevance: c.relevance(o, h),
		Trust:     clamp01(float64(o.TrustScore) / MaxTrustScore),
		Freshness: c.freshness(o, asOf),
	}
	s.Total = clamp01(c.w.Relevance*s.Relevance + c.w.Trust*s.Trust + c.w.Freshness*s.Freshness)
	return s
}

func (c *ScoreCalculator) freshness(o Opportunity, asOf time.Time) float64 {
	if o.ExpiresAt == nil && len(o.Urgency) == 0 {
		return c.w.NeutralFreshness
	}

	age := max(asOf.Sub(o.PublishedAt), 0)
	decay := math.Exp(-math.Ln2 * float64(age) / float64(c.w.FreshnessHalfLife))

	var bonus float64
	if o.HasUrgency(UrgencyNew) {
		bonus += c.w.NewBonus
	}
	if o.HasUrgency(UrgencyEndingSoon) {
		bonus += c.w.EndingSoonBonus
	}
	if o.HasUrgency(UrgencyHot) {
		bonus += c.w.HotBonus
	}
	return clamp01(decay + bonus)
}

func (c *ScoreCalculator) relevance(o Opportunity, h *WalletHistory) float64 {
	if h == nil {
		if o.Featured || o.HasUrgency(UrgencyHot) {
			return clamp01(c.w.ColdStart + c.w.ColdStartBoost)
		}
		return c.w.ColdStart
	}

	completed := h.CompletedTypes[o.Type]
	saved := h.SavedTypes[o.Type]

	return clamp01(c.w.ChainMatch*c.chainMatch(o, h) +
		c.w.TypeMatch*c.typeMatch(completed, saved) +
		c.w.CompletionCount*c.saturate(completed, c.w.CompletionCeiling) +
		c.w.SaveCount*c.saturate(saved, c.w.SaveCeiling))
}

func (c *ScoreCalculator) chainMatch(o Opportunity, h *WalletHistory) float64 {
	best := 0
	for _, chain := range o.Chains {
		chain = strings.ToLower(chain)
		if _, ok := h.PreferredChains[chain]; ok {
			return c.w.PreferredChain
		}
		best = max(best, h.HistoryChains[chain])
	}
	if best == 0 {
		return c.w.UnknownChain
	}

	top := h.topChainCount()
	span := c.w.PreferredChain - c.w.HistoryChainFloor
	return clamp01(c.w.HistoryChainFloor + span*float64(best)/float64(top))
}

func (c *ScoreCalculator) typeMatch(completed, saved int) float64 {
	switch {
	case completed > 0:
		return c.w.CompletedType
	case saved > 0:
		return c.w.SavedType
	default:
		return c.w.UnknownType
	}
}

func (c *ScoreCalculator) saturate(count int, ceiling float64) float64 {
	if count <= 0 {
		return 0
	}
	ratio := min(float64(count)/float64(c.w.EngagementSaturation), 1)
	return clamp01(ratio * ceiling)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
