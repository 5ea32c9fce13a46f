package moralis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"auditor/internal/pkg/fetch"
)

type TokenMetadata struct {
	Mint              string          `json:"mint"`
	Name              string          `json:"name"`
	Symbol            string          `json:"symbol"`
	FullyDilutedValue json.RawMessage `json:"fullyDilutedValue"`
}

// FullyDilutedValueUSD accepts the numeric and the numeric-string forms.
func (m *TokenMetadata) FullyDilutedValueUSD() (float64, bool) {
	raw := strings.TrimSpace(string(m.FullyDilutedValue))
	if raw == "" || raw == "null" {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(m.FullyDilutedValue, &n); err == nil {
		return n, n > 0
	}

	var s string
	if err := json.Unmarshal(m.FullyDilutedValue, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, n > 0
}

type Client struct {
	apiKey  string
	baseURL string
	http    *fetch.Client
}

func NewClient(apiKey, baseURL string, httpClient *fetch.Client) *Client {
	return &Client{apiKey: apiKey, baseURL: baseURL, http: httpClient}
}

func (c *Client) GetTokenMetadata(ctx context.Context, mint string) (*TokenMetadata, error) {
	endpoint := fmt.Sprintf("%s/token/mainnet/%s/metadata", c.baseURL, url.PathEscape(mint))

	var meta TokenMetadata
	if err := c.http.GetJSON(ctx, endpoint, map[string]string{"X-API-Key": c.apiKey}, &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch moralis metadata: %w", err)
	}
	return &meta, nil
}
