package birdeye

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"auditor/internal/pkg/fetch"
)

var ErrNoPrice = errors.New("birdeye returned no price")

type priceResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Value float64 `json:"value"`
	} `json:"data"`
}

type Client struct {
	apiKey  string
	baseURL string
	http    *fetch.Client
}

func NewClient(apiKey, baseURL string, httpClient *fetch.Client) *Client {
	return &Client{apiKey: apiKey, baseURL: baseURL, http: httpClient}
}

// GetPrice returns the USD price of one token.
func (c *Client) GetPrice(ctx context.Context, mint string) (float64, error) {
	endpoint := fmt.Sprintf("%s/public/price?address=%s", c.baseURL, url.QueryEscape(mint))

	var resp priceResponse
	if err := c.http.GetJSON(ctx, endpoint, map[string]string{"X-API-KEY": c.apiKey}, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch birdeye price: %w", err)
	}
	if resp.Data == nil || resp.Data.Value == 0 {
		return 0, ErrNoPrice
	}
	return resp.Data.Value, nil
}
