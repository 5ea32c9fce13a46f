package market

import (
	"context"
	"errors"
	"fmt"

	"auditor/internal/pkg/helius"
)

// Provider resolves a market cap in USD for one mint.
type Provider interface {
	Name() string
	MarketCap(ctx context.Context, q Query) (float64, error)
}

// Query carries the mint and anything the caller already fetched for it.
type Query struct {
	Mint  string
	Asset *helius.Asset
}

var (
	// ErrNoData means the source answered but had nothing usable.
	ErrNoData = errors.New("no market cap data")
)

// ProviderError wraps a failure with the provider that produced it.
type ProviderError struct {
	Provider string
	Mint     string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider=%s mint=%s: %v", e.Provider, e.Mint, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider, mint string, err error) error {
	return &ProviderError{
		Provider: provider,
		Mint:     mint,
		Err:      err,
	}
}
