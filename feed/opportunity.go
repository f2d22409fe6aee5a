// Package feed ranks, caps and pages the opportunity discovery feed.
package feed

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the kind of opportunity
type Type string

const (
	TypeAirdrop Type = "airdrop"
	TypeQuest   Type = "quest"
	TypeStaking Type = "staking"
	TypeYield   Type = "yield"
	TypePoints  Type = "points"
)

var allTypes = []Type{TypeAirdrop, TypeQuest, TypeStaking, TypeYield, TypePoints}

// Urgency is a flag raised by the catalog on time-sensitive items
type Urgency string

const (
	UrgencyNew        Urgency = "new"
	UrgencyEndingSoon Urgency = "ending_soon"
	UrgencyHot        Urgency = "hot"
)

var allUrgencies = []Urgency{UrgencyNew, UrgencyEndingSoon, UrgencyHot}

// Difficulty is the effort estimate attached to an opportunity
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var allDifficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// TrustLevel buckets a trust score
type TrustLevel string

const (
	TrustGreen TrustLevel = "green"
	TrustAmber TrustLevel = "amber"
	TrustRed   TrustLevel = "red"
)

// Trust level thresholds
const (
	GreenTrustFloor = 80
	AmberTrustFloor = 60
	MaxTrustScore   = 100
)

// Value parsing errors
var (
	ErrUnknownType       = errors.New("unknown opportunity type")
	ErrUnknownUrgency    = errors.New("unknown urgency flag")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)

// ParseType validates a raw type name
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !slices.Contains(allTypes, t) {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// ParseUrgency validates a raw urgency flag
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(s)
	if !slices.Contains(allUrgencies, u) {
		return "", fmt.Errorf("%w: %q", ErrUnknownUrgency, s)
	}
	return u, nil
}

// ParseDifficulty validates a raw difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !slices.Contains(allDifficulties, d) {
		return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
	}
	return d, nil
}

// LevelForScore derives the trust level of a 0-100 score
func LevelForScore(score int) TrustLevel {
	switch {
	case score >= GreenTrustFloor:
		return TrustGreen
	case score >= AmberTrustFloor:
		return TrustAmber
	default:
		return TrustRed
	}
}

// Opportunity is a catalog entry as seen by the feed. The feed never mutates it.
type Opportunity struct {
	ID          string
	Type        Type
	Title       string
	Protocol    string
	Chains      []string
	TrustScore  int
	PublishedAt time.Time
	ExpiresAt   *time.Time
	Urgency     []Urgency
	Difficulty  Difficulty
	RewardMin   decimal.Decimal
	RewardMax   decimal.Decimal
	Sponsored   bool
	Featured    bool
	UpdatedAt   time.Time
}

// TrustLevel returns the level derived from the trust score
func (o Opportunity) TrustLevel() TrustLevel {
	return LevelForScore(o.TrustScore)
}

// HasUrgency reports whether the flag is raised
func (o Opportunity) HasUrgency(u Urgency) bool {
	return slices.Contains(o.Urgency, u)
}

// ExpiredAt reports whether the opportunity is no longer live at t
func (o Opportunity) ExpiredAt(t time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(t)
}
