package offchain

import (
	"context"
	"fmt"

	"auditor/internal/pkg/fetch"
)

type Links struct {
	Website string `json:"website"`
	Twitter string `json:"twitter"`
}

// Metadata is the JSON document a token's json_uri points at.
type Metadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Properties  struct {
		Links Links `json:"links"`
	} `json:"properties"`
	Website string `json:"website"`
	Twitter string `json:"twitter"`
}

type Client struct {
	http *fetch.Client
}

func NewClient(httpClient *fetch.Client) *Client {
	return &Client{http: httpClient}
}

func (c *Client) FetchMetadata(ctx context.Context, uri string) (*Metadata, error) {
	var meta Metadata
	if err := c.http.GetJSON(ctx, uri, nil, &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch off-chain metadata: %w", err)
	}
	return &meta, nil
}
