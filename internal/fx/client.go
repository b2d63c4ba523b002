// Package fx fetches currency exchange rates.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://api.exchangerate-api.com/v4/latest"
	defaultTimeout = 5 * time.Second
)

// Client is exchange rate API client
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates new Client, empty baseURL means exchangerate-api.com
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: baseURL,
	}
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Rate returns how many units of to one unit of from costs
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	// GET /latest/{from}
	u, err := url.JoinPath(c.baseURL, from)
	if err != nil {
		return decimal.Zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return decimal.Zero, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("exchange rate service returned status %d", resp.StatusCode)
	}

	var latest latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		return decimal.Zero, err
	}

	rate, ok := latest.Rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("no %s rate for %s", to, from)
	}

	return rate, nil
}
