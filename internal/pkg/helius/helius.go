package helius

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"

	"auditor/internal/pkg/fetch"
)

var (
	ErrNoAsset = errors.New("helius returned no asset")
)

// RPCError is the error object of a JSON-RPC 2.0 response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("helius rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	Result *Asset    `json:"result"`
	Error  *RPCError `json:"error"`
}

type Links struct {
	Website string `json:"website"`
	Twitter string `json:"twitter"`
}

type Asset struct {
	Interface string `json:"interface"`
	ID        string `json:"id"`
	Content   struct {
		JSONURI  string `json:"json_uri"`
		Metadata struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
		} `json:"metadata"`
		Links Links `json:"links"`
	} `json:"content"`
	TokenInfo struct {
		Supply    float64 `json:"supply"`
		Decimals  int     `json:"decimals"`
		PriceInfo *struct {
			PricePerToken float64 `json:"price_per_token"`
			Currency      string  `json:"currency"`
		} `json:"price_info"`
	} `json:"token_info"`
	Mutable *bool `json:"mutable"`
}

// IsMutable treats a missing flag as mutable.
func (a *Asset) IsMutable() bool {
	return a.Mutable == nil || *a.Mutable
}

// MarketCap is supply / 10^decimals * price_per_token, when both are known.
func (a *Asset) MarketCap() (float64, bool) {
	info := a.TokenInfo
	if info.Supply == 0 || info.PriceInfo == nil || info.PriceInfo.PricePerToken == 0 {
		return 0, false
	}
	return info.Supply / math.Pow10(info.Decimals) * info.PriceInfo.PricePerToken, true
}

type TokenPrice struct {
	PriceInfo struct {
		PricePerToken float64 `json:"price_per_token"`
		MarketCap     float64 `json:"market_cap"`
	} `json:"price_info"`
}

type Client struct {
	apiKey string
	rpcURL string
	apiURL string
	http   *fetch.Client
}

func NewClient(apiKey, rpcURL, apiURL string, httpClient *fetch.Client) *Client {
	return &Client{apiKey: apiKey, rpcURL: rpcURL, apiURL: apiURL, http: httpClient}
}

// GetAsset calls the DAS getAsset method for a mint.
func (c *Client) GetAsset(ctx context.Context, mint string) (*Asset, error) {
	endpoint := fmt.Sprintf("%s/?api-key=%s", c.rpcURL, url.QueryEscape(c.apiKey))
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      "auditor",
		Method:  "getAsset",
		Params:  map[string]any{"id": mint},
	}

	var resp rpcResponse
	if err := c.http.PostJSON(ctx, endpoint, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Result == nil {
		return nil, ErrNoAsset
	}

	return resp.Result, nil
}

// GetTokenPrice reads the token price endpoint of the REST API.
func (c *Client) GetTokenPrice(ctx context.Context, mint string) (*TokenPrice, error) {
	endpoint := fmt.Sprintf("%s/v0/tokens/%s/price?api-key=%s", c.apiURL, url.PathEscape(mint), url.QueryEscape(c.apiKey))

	var price TokenPrice
	if err := c.http.GetJSON(ctx, endpoint, nil, &price); err != nil {
		return nil, fmt.Errorf("failed to fetch token price: %w", err)
	}
	return &price, nil
}
