package feed

// Sponsored window defaults
const (
	DefaultSponsoredCap    = 2
	DefaultSponsoredWindow = 12
)

// Candidate is a filtered opportunity with its score and position
type Candidate struct {
	Opportunity Opportunity
	Score       RankScore
	Key         SortKey

	// Generation is the rank generation the key was read from, 0 when scored live
	Generation int64
}

// SponsoredWindowFilter caps sponsored items to Cap per any Window consecutive accepted items.
// The trailing flags carry the window across page boundaries.
type SponsoredWindowFilter struct {
	Cap    int
	Window int
}

// NewSponsoredWindowFilter creates a filter, falling back to defaults for non-positive values
func NewSponsoredWindowFilter(capacity, window int) SponsoredWindowFilter {
	if capacity <= 0 {
		capacity = DefaultSponsoredCap
	}
	if window <= 1 {
		window = DefaultSponsoredWindow
	}
	return SponsoredWindowFilter{Cap: capacity, Window: window}
}

// WindowResult is the outcome of one Apply call
type WindowResult struct {
	Accepted []Candidate
	Trailing []bool
	// Consumed is how many candidates were examined, accepted or skipped
	Consumed int
	Skipped  int
}

// Apply walks candidates in order, skipping sponsored ones that would overflow the window,
// until pageSize items are accepted or candidates run out.
func (f SponsoredWindowFilter) Apply(candidates []Candidate, trailing []bool, pageSize int) WindowResult {
	keep := f.Window - 1
	window := make([]bool, 0, keep+1)
	window = append(window, tail(trailing, keep)...)

	sponsored := 0
	for _, flag := range window {
		if flag {
			sponsored++
		}
	}

	res := WindowResult{Accepted: make([]Candidate, 0, min(pageSize, len(candidates)))}
	for _, c := range candidates {
		if len(res.Accepted) >= pageSize {
			break
		}
		res.Consumed++

		flag := c.Opportunity.Sponsored
		if flag && sponsored >= f.Cap {
			res.Skipped++
			continue
		}

		res.Accepted = append(res.Accepted, c)
		window = append(window, flag)
		if flag {
			sponsored++
		}
		if len(window) > keep {
			if window[0] {
				sponsored--
			}
			window = window[1:]
		}
	}

	res.Trailing = append([]bool(nil), window...)
	return res
}

func tail(flags []bool, n int) []bool {
	if len(flags) <= n {
		return flags
	}
	return flags[len(flags)-n:]
}
