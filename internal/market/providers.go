package market

import (
	"context"

	"auditor/internal/pkg/birdeye"
	"auditor/internal/pkg/helius"
	"auditor/internal/pkg/moralis"
)

// BirdeyeSupplyEstimate is the fixed supply used to turn a Birdeye price into a market cap.
const BirdeyeSupplyEstimate = 1e9

type MoralisFDV struct {
	Client *moralis.Client
}

func (p *MoralisFDV) Name() string { return "moralis-fdv" }

func (p *MoralisFDV) MarketCap(ctx context.Context, q Query) (float64, error) {
	meta, err := p.Client.GetTokenMetadata(ctx, q.Mint)
	if err != nil {
		return 0, err
	}
	fdv, ok := meta.FullyDilutedValueUSD()
	if !ok {
		return 0, ErrNoData
	}
	return fdv, nil
}

// HeliusAsset prices the asset from its own supply and price_per_token.
type HeliusAsset struct {
	Client *helius.Client
}

func (p *HeliusAsset) Name() string { return "helius-asset" }

func (p *HeliusAsset) MarketCap(ctx context.Context, q Query) (float64, error) {
	asset := q.Asset
	if asset == nil {
		var err error
		asset, err = p.Client.GetAsset(ctx, q.Mint)
		if err != nil {
			return 0, err
		}
	}
	mc, ok := asset.MarketCap()
	if !ok {
		return 0, ErrNoData
	}
	return mc, nil
}

type HeliusPrice struct {
	Client *helius.Client
}

func (p *HeliusPrice) Name() string { return "helius-price" }

func (p *HeliusPrice) MarketCap(ctx context.Context, q Query) (float64, error) {
	price, err := p.Client.GetTokenPrice(ctx, q.Mint)
	if err != nil {
		return 0, err
	}
	if price.PriceInfo.MarketCap <= 0 {
		return 0, ErrNoData
	}
	return price.PriceInfo.MarketCap, nil
}

type Birdeye struct {
	Client *birdeye.Client
}

func (p *Birdeye) Name() string { return "birdeye" }

func (p *Birdeye) MarketCap(ctx context.Context, q Query) (float64, error) {
	price, err := p.Client.GetPrice(ctx, q.Mint)
	if err != nil {
		return 0, err
	}
	return price * BirdeyeSupplyEstimate, nil
}
