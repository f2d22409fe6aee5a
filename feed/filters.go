package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Filter defaults and bounds
const (
	DefaultTrustMin = GreenTrustFloor
	DefaultLimit    = 12
	MaxLimit        = 50
	MaxSearchLength = 128
)

// Validation errors. Every one of them wraps ErrInvalidFilter.
var (
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrInvalidSort        = fmt.Errorf("%w: unknown sort", ErrInvalidFilter)
	ErrInvalidLimit       = fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFilter, MaxLimit)
	ErrInvalidTrustFloor  = fmt.Errorf("%w: trust floor", ErrInvalidFilter)
	ErrInvalidRewardRange = fmt.Errorf("%w: reward range", ErrInvalidFilter)
	ErrSearchTooLong      = fmt.Errorf("%w: search must be at most %d characters", ErrInvalidFilter, MaxSearchLength)
)

// Sort selects the primary ordering key of a feed
type Sort string

const (
	SortRecommended   Sort = "recommended"
	SortEndsSoon      Sort = "ends_soon"
	SortHighestReward Sort = "highest_reward"
	SortNewest        Sort = "newest"
	SortTrust         Sort = "trust"
)

var allSorts = []Sort{SortRecommended, SortEndsSoon, SortHighestReward, SortNewest, SortTrust}

// ParseSort validates a sort name. Empty means recommended.
func ParseSort(s string) (Sort, error) {
	if s == "" {
		return SortRecommended, nil
	}
	sort := Sort(s)
	if !slices.Contains(allSorts, sort) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
	return sort, nil
}

// ParseLimit validates a page size. Zero means DefaultLimit.
func ParseLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultLimit, nil
	}
	if limit < 0 || limit > MaxLimit {
		return 0, ErrInvalidLimit
	}
	return limit, nil
}

// FilterInput is the raw, unvalidated filter set of a request
type FilterInput struct {
	Types           []Type
	Chains          []string
	TrustMin        *int
	IncludeLowTrust bool
	RewardMin       *decimal.Decimal
	RewardMax       *decimal.Decimal
	Urgency         []Urgency
	Difficulty      []Difficulty
	Search          string
}

// Filters is a validated, canonical filter set. Empty lists match everything.
type Filters struct {
	Types      []Type
	Chains     []string
	TrustMin   int
	RewardMin  *decimal.Decimal
	RewardMax  *decimal.Decimal
	Urgency    []Urgency
	Difficulty []Difficulty
	Search     string
}

// NewFilters validates the input and returns the canonical filter set.
// Lowering the trust floor below DefaultTrustMin needs IncludeLowTrust.
func NewFilters(in FilterInput) (Filters, error) {
	f := Filters{
		Types:      canonical(in.Types),
		Chains:     canonical(lowerAll(in.Chains)),
		TrustMin:   DefaultTrustMin,
		RewardMin:  in.RewardMin,
		RewardMax:  in.RewardMax,
		Urgency:    canonical(in.Urgency),
		Difficulty: canonical(in.Difficulty),
		Search:     strings.TrimSpace(in.Search),
	}

	if in.TrustMin != nil {
		trustMin := *in.TrustMin
		if trustMin < 0 || trustMin > MaxTrustScore {
			return Filters{}, fmt.Errorf("%w: must be between 0 and %d", ErrInvalidTrustFloor, MaxTrustScore)
		}
		if trustMin < DefaultTrustMin && !in.IncludeLowTrust {
			return Filters{}, fmt.Errorf("%w: values below %d require include_low_trust", ErrInvalidTrustFloor, DefaultTrustMin)
		}
		f.TrustMin = trustMin
	}

	if err := validateRewardRange(in.RewardMin, in.RewardMax); err != nil {
		return Filters{}, err
	}

	if len(f.Search) > MaxSearchLength {
		return Filters{}, ErrSearchTooLong
	}

	return f, nil
}

func validateRewardRange(lo, hi *decimal.Decimal) error {
	if lo != nil && lo.IsNegative() {
		return fmt.Errorf("%w: reward_min must not be negative", ErrInvalidRewardRange)
	}
	if hi != nil && hi.IsNegative() {
		return fmt.Errorf("%w: reward_max must not be negative", ErrInvalidRewardRange)
	}
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		return fmt.Errorf("%w: reward_min exceeds reward_max", ErrInvalidRewardRange)
	}
	return nil
}

// Match reports whether o passes every predicate and is live at snapshot
func (f Filters) Match(o Opportunity, snapshot time.Time) bool {
	if o.UpdatedAt.After(snapshot) || o.ExpiredAt(snapshot) {
		return false
	}
	if o.TrustScore < f.TrustMin {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, o.Type) {
		return false
	}
	if len(f.Chains) > 0 && !overlaps(f.Chains, lowerAll(o.Chains)) {
		return false
	}
	if len(f.Urgency) > 0 && !overlaps(f.Urgency, o.Urgency) {
		return false
	}
	if len(f.Difficulty) > 0 && !slices.Contains(f.Difficulty, o.Difficulty) {
		return false
	}
	if f.RewardMin != nil && o.RewardMax.LessThan(*f.RewardMin) {
		return false
	}
	if f.RewardMax != nil && o.RewardMin.GreaterThan(*f.RewardMax) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(o.Title), needle) &&
			!strings.Contains(strings.ToLower(o.Protocol), needle) {
			return false
		}
	}
	return true
}

// Hash fingerprints the filter set so a cursor can be bound to it
func (f Filters) Hash() string {
	var b strings.Builder
	writeList(&b, "t", f.Types)
	writeList(&b, "c", f.Chains)
	writeList(&b, "u", f.Urgency)
	writeList(&b, "d", f.Difficulty)
	fmt.Fprintf(&b, "m=%d;", f.TrustMin)
	if f.RewardMin != nil {
		fmt.Fprintf(&b, "rl=%s;", f.RewardMin.String())
	}
	if f.RewardMax != nil {
		fmt.Fprintf(&b, "rh=%s;", f.RewardMax.String())
	}
	fmt.Fprintf(&b, "s=%s", strings.ToLower(f.Search))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

func writeList[T ~string](b *strings.Builder, key string, values []T) {
	b.WriteString(key)
	b.WriteByte('=')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(v))
	}
	b.WriteByte(';')
}

func canonical[T ~string](values []T) []T {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

func lowerAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func overlaps[T comparable](want, have []T) bool {
	for _, h := range have {
		if slices.Contains(want, h) {
			return true
		}
	}
	return false
}
