package feed

import (
	"cmp"
	"strings"
	"time"
)

// rewardScale maps a USD reward into (0,1) for the highest_reward sort
const rewardScale = 1000.0

// SortKey is the total-order position of a candidate:
// Primary desc, Trust desc, ExpiresAt asc (nil last), ID asc.
type SortKey struct {
	Primary   float64    `json:"p"`
	Trust     int        `json:"t"`
	ExpiresAt *time.Time `json:"e,omitempty"`
	ID        string     `json:"i"`
}

// Compare returns -1 if k comes before other in the feed, +1 if after and 0 only for the same ID
func (k SortKey) Compare(other SortKey) int {
	if c := cmp.Compare(other.Primary, k.Primary); c != 0 {
		return c
	}
	if c := cmp.Compare(other.Trust, k.Trust); c != 0 {
		return c
	}
	if c := compareExpiry(k.ExpiresAt, other.ExpiresAt); c != 0 {
		return c
	}
	return strings.Compare(k.ID, other.ID)
}

// Before reports whether k strictly precedes other
func (k SortKey) Before(other SortKey) bool {
	return k.Compare(other) < 0
}

func compareExpiry(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// KeyFor derives the sort key of o under sort. Every primary key lies in [0,1].
func KeyFor(sort Sort, o Opportunity, score RankScore, asOf time.Time) SortKey {
	return SortKey{
		Primary:   primaryKey(sort, o, score, asOf),
		Trust:     o.TrustScore,
		ExpiresAt: o.ExpiresAt,
		ID:        o.ID,
	}
}

func primaryKey(sort Sort, o Opportunity, score RankScore, asOf time.Time) float64 {
	switch sort {
	case SortEndsSoon:
		if o.ExpiresAt == nil {
			return 0
		}
		left := max(o.ExpiresAt.Sub(asOf), 0)
		return 1 / (1 + left.Hours())
	case SortHighestReward:
		reward := o.RewardMax.InexactFloat64()
		if reward <= 0 {
			return 0
		}
		return reward / (reward + rewardScale)
	case SortNewest:
		age := max(asOf.Sub(o.PublishedAt), 0)
		return 1 / (1 + age.Hours())
	case SortTrust:
		return clamp01(float64(o.TrustScore) / MaxTrustScore)
	default:
		return score.Total
	}
}
