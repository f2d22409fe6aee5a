// Package walletapi reads wallet activity from the wallet service over HTTP
package walletapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/screwyprof/oppfeed/feed"
)

// ErrUnexpectedStatus is returned for any response other than 200 or 404
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Client is a wallet service API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ feed.HistoryStore = (*Client)(nil)

// NewClient creates a client with a custom HTTP client and base URL
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// Activity is one completed or saved opportunity as served by the wallet service
type Activity struct {
	OpportunityID string    `json:"opportunity_id"`
	Type          string    `json:"type"`
	Chains        []string  `json:"chains"`
	At            time.Time `json:"at"`
}

// ActivityResponse is the body of GET /v1/wallets/{address}/activity
type ActivityResponse struct {
	PreferredChains []string   `json:"preferred_chains"`
	Completed       []Activity `json:"completed"`
	Saved           []Activity `json:"saved"`
}

// GetActivity fetches the most recent activity of a wallet. Unknown wallets yield an empty response.
func (c *Client) GetActivity(ctx context.Context, wallet string, limit int) (ActivityResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/wallets/%s/activity?limit=%s",
		c.baseURL, url.PathEscape(wallet), strconv.Itoa(limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ActivityResponse{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ActivityResponse{}, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ActivityResponse{}, nil
	default:
		return ActivityResponse{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var out ActivityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ActivityResponse{}, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

// WalletActivity implements feed.HistoryStore. Items of unknown type are dropped.
func (c *Client) WalletActivity(ctx context.Context, wallet string, limit int) (feed.WalletActivity, error) {
	resp, err := c.GetActivity(ctx, wallet, limit)
	if err != nil {
		return feed.WalletActivity{}, err
	}

	return feed.WalletActivity{
		PreferredChains: resp.PreferredChains,
		Completed:       convertActivity(resp.Completed, limit),
		Saved:           convertActivity(resp.Saved, limit),
	}, nil
}

func convertActivity(items []Activity, limit int) []feed.Activity {
	if limit <= 0 {
		limit = len(items)
	}
	out := make([]feed.Activity, 0, min(len(items), limit))
	for _, a := range items {
		if len(out) == limit {
			break
		}
		typ, err := feed.ParseType(a.Type)
		if err != nil {
			continue
		}
		out = append(out, feed.Activity{
			OpportunityID: a.OpportunityID,
			Type:          typ,
			Chains:        a.Chains,
			At:            a.At,
		})
	}
	return out
}
