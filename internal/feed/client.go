// Package feed obtains reference prices for markets from the external venue.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Client fetches midpoints from the venue's CLOB REST API. The /midpoint
// endpoint is rate-limited upstream; callers make at most one call per
// selected market per cycle.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type midpointResponse struct {
	Mid string `json:"mid"`
}

// Midpoint returns the live midpoint for a venue token.
func (c *Client) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	endpoint := c.baseURL + "/midpoint?token_id=" + url.QueryEscape(tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return 0, fmt.Errorf("midpoint http %d: %s", resp.StatusCode, string(body))
	}
	var data midpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, err
	}
	mid, err := strconv.ParseFloat(data.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("midpoint parse %q: %w", data.Mid, err)
	}
	return mid, nil
}
