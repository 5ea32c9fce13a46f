package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"auditor/internal/app"
	"auditor/internal/config"
	"auditor/internal/logger"
	"auditor/internal/market"
	"auditor/internal/pkg/offchain"
	"auditor/internal/pkg/solana"
	"auditor/internal/scan"

	_ "github.com/joho/godotenv/autoload"
)

/*
Usage: go run . <mint>

Dry-runs the data half of a scan: token facts, degen score and the market cap
chain with every provider failure. Nothing is stored and the LLM is not called.
*/

type providerFailure struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

type diagnosis struct {
	Mint           string            `json:"mint"`
	Facts          scan.TokenFacts   `json:"facts"`
	Score          int               `json:"degen_score"`
	MarketCap      float64           `json:"market_cap"`
	MarketCapKnown bool              `json:"market_cap_known"`
	Source         string            `json:"source,omitempty"`
	Recommendation string            `json:"recommendation"`
	Failures       []providerFailure `json:"failures,omitempty"`
	OffchainError  string            `json:"offchain_error,omitempty"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: auditor <mint>")
		os.Exit(2)
	}
	mint := os.Args[1]
	if err := solana.ValidateAddress(mint); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.HeliusAPIKey == "" {
		log.Fatal("HELIUS_API_KEY is not set")
	}

	lggr, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = lggr.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a := app.NewSources(cfg, lggr)

	asset, err := a.Helius.GetAsset(ctx, mint)
	if err != nil {
		log.Fatalf("Failed to load asset: %v", err)
	}

	out := diagnosis{Mint: mint}

	var off *offchain.Metadata
	if uri := asset.Content.JSONURI; uri != "" {
		if off, err = a.Offchain.FetchMetadata(ctx, uri); err != nil {
			out.OffchainError = err.Error()
			off = nil
		}
	}

	res := a.Market.Resolve(ctx, market.Query{Mint: mint, Asset: asset})

	out.Facts = scan.MergeFacts(asset, off)
	out.Score = scan.Score(out.Facts)
	out.MarketCap = res.MarketCap
	out.MarketCapKnown = res.Known
	out.Source = res.Source
	out.Recommendation = scan.Recommend(res)
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, providerFailure{Provider: f.Provider, Error: f.Err.Error()})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal(err)
	}
}
