package bind

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/oppfeed/feed"
	"github.com/screwyprof/oppfeed/web/api"
)

// MaxWalletLength bounds the wallet query parameter
const MaxWalletLength = 128

// Binding errors. Each wraps the feed validation error it maps to.
var (
	ErrLimitNotNumeric     = fmt.Errorf("%w: limit must be numeric", feed.ErrInvalidLimit)
	ErrTrustMinNotNumeric  = fmt.Errorf("%w: trust_min must be numeric", feed.ErrInvalidTrustFloor)
	ErrRewardNotDecimal    = fmt.Errorf("%w: reward bounds must be decimal numbers", feed.ErrInvalidRewardRange)
	ErrIncludeLowTrustFlag = fmt.Errorf("%w: include_low_trust must be true or false", feed.ErrInvalidFilter)
	ErrWalletTooLong       = fmt.Errorf("%w: wallet must be at most %d characters", feed.ErrInvalidFilter, MaxWalletLength)
)

// GetOpportunitiesRequest binds the HTTP query to OpportunitiesRequest
func GetOpportunitiesRequest(r *http.Request) (api.OpportunitiesRequest, error) {
	query := r.URL.Query()

	req := api.OpportunitiesRequest{
		Types:      splitList(query, "types"),
		Chains:     splitList(query, "chains"),
		Urgency:    splitList(query, "urgency"),
		Difficulty: splitList(query, "difficulty"),
		Search:     query.Get("search"),
		Sort:       strings.TrimSpace(query.Get("sort")),
		Cursor:     strings.TrimSpace(query.Get("cursor")),
		Wallet:     strings.TrimSpace(query.Get("wallet")),
	}

	if limitParam := query.Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil {
			return req, ErrLimitNotNumeric
		}
		if limit == 0 {
			return req, feed.ErrInvalidLimit
		}
		req.Limit = limit
	}

	if trustParam := query.Get("trust_min"); trustParam != "" {
		trustMin, err := strconv.Atoi(trustParam)
		if err != nil {
			return req, ErrTrustMinNotNumeric
		}
		req.TrustMin = &trustMin
	}

	if flag := query.Get("include_low_trust"); flag != "" {
		include, err := strconv.ParseBool(flag)
		if err != nil {
			return req, ErrIncludeLowTrustFlag
		}
		req.IncludeLowTrust = include
	}

	var err error
	if req.RewardMin, err = parseDecimal(query.Get("reward_min")); err != nil {
		return req, err
	}
	if req.RewardMax, err = parseDecimal(query.Get("reward_max")); err != nil {
		return req, err
	}

	if len(req.Wallet) > MaxWalletLength {
		return req, ErrWalletTooLong
	}

	return req, nil
}

// FeedRequest validates the bound request and converts it to a paginator request
func FeedRequest(req api.OpportunitiesRequest) (feed.Request, error) {
	types, err := parseAll(req.Types, feed.ParseType)
	if err != nil {
		return feed.Request{}, err
	}
	urgency, err := parseAll(req.Urgency, feed.ParseUrgency)
	if err != nil {
		return feed.Request{}, err
	}
	difficulty, err := parseAll(req.Difficulty, feed.ParseDifficulty)
	if err != nil {
		return feed.Request{}, err
	}

	filters, err := feed.NewFilters(feed.FilterInput{
		Types:           types,
		Chains:          req.Chains,
		TrustMin:        req.TrustMin,
		IncludeLowTrust: req.IncludeLowTrust,
		RewardMin:       req.RewardMin,
		RewardMax:       req.RewardMax,
		Urgency:         urgency,
		Difficulty:      difficulty,
		Search:          req.Search,
	})
	if err != nil {
		return feed.Request{}, err
	}

	sort, err := feed.ParseSort(req.Sort)
	if err != nil {
		return feed.Request{}, err
	}
	limit, err := feed.ParseLimit(req.Limit)
	if err != nil {
		return feed.Request{}, err
	}

	return feed.Request{
		Filters: filters,
		Sort:    sort,
		Limit:   limit,
		Cursor:  req.Cursor,
		Wallet:  feed.NormalizeWallet(req.Wallet),
	}, nil
}

// GetOpportunitiesResponse binds a feed page to the API response format
func GetOpportunitiesResponse(page *feed.Page) api.OpportunitiesResponse {
	items := make([]api.Opportunity, len(page.Items))
	for i, c := range page.Items {
		items[i] = opportunity(c)
	}

	return api.OpportunitiesResponse{
		Items:        items,
		NextCursor:   page.NextCursor,
		SnapshotTs:   page.SnapshotTs.UnixMilli(),
		Personalized: page.Personalized,
	}
}

func opportunity(c feed.Candidate) api.Opportunity {
	o := c.Opportunity

	var expiresAt *string
	if o.ExpiresAt != nil {
		s := o.ExpiresAt.UTC().Format(time.RFC3339)
		expiresAt = &s
	}

	urgency := make([]string, len(o.Urgency))
	for i, u := range o.Urgency {
		urgency[i] = string(u)
	}

	chains := o.Chains
	if chains == nil {
		chains = []string{}
	}

	return api.Opportunity{
		ID:          o.ID,
		Type:        string(o.Type),
		Title:       o.Title,
		Protocol:    o.Protocol,
		Chains:      chains,
		TrustScore:  o.TrustScore,
		TrustLevel:  string(o.TrustLevel()),
		RewardMin:   o.RewardMin,
		RewardMax:   o.RewardMax,
		Urgency:     urgency,
		Difficulty:  string(o.Difficulty),
		Sponsored:   o.Sponsored,
		Featured:    o.Featured,
		PublishedAt: o.PublishedAt.UTC().Format(time.RFC3339),
		ExpiresAt:   expiresAt,
		Score: api.Score{
			Relevance: c.Score.Relevance,
			Trust:     c.Score.Trust,
			Freshness: c.Score.Freshness,
			Total:     c.Score.Total,
		},
	}
}

// splitList reads a comma-separated parameter, also accepting the parameter repeated
func splitList(query url.Values, key string) []string {
	var out []string
	for _, raw := range query[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, ErrRewardNotDecimal
	}
	return &d, nil
}

func parseAll[T any](values []string, parse func(string) (T, error)) ([]T, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]T, len(values))
	for i, v := range values {
		parsed, err := parse(strings.ToLower(v))
		if err != nil {
			return nil, errors.Join(feed.ErrInvalidFilter, err)
		}
		out[i] = parsed
	}
	return out, nil
}
