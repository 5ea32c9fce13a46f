package scan

import (
	"context"
	"errors"
	"fmt"

	"auditor/internal/logger"
	"auditor/internal/market"
	"auditor/internal/models"
	"auditor/internal/pkg/helius"
	"auditor/internal/pkg/offchain"
	"auditor/internal/report"
)

const (
	RecommendationUnknown = "A true mystery"
	RecommendationRun     = "Run, You Fool!"
	RecommendationMoon    = "Moon Lambo Time, Idiots!"

	// below this market cap a token is a "run"
	MoonThreshold = 10000
)

var ErrNoAssetData = errors.New("no Helius data")

type AssetSource interface {
	GetAsset(ctx context.Context, mint string) (*helius.Asset, error)
}

type MetadataSource interface {
	FetchMetadata(ctx context.Context, uri string) (*offchain.Metadata, error)
}

type MarketResolver interface {
	Resolve(ctx context.Context, q market.Query) market.Result
}

// Verdicter turns a prompt into the model's one-line verdict.
type Verdicter interface {
	Verdict(ctx context.Context, prompt string) (string, error)
}

type Request struct {
	TokenAddress string
	UserWallet   string
}

type Result struct {
	Report         string
	Facts          TokenFacts
	Score          int
	Market         market.Result
	Recommendation string
	Scan           *models.Scan
}

type Service struct {
	gate     Gate
	assets   AssetSource
	offchain MetadataSource
	market   MarketResolver
	llm      Verdicter
	lggr     logger.Logger
}

func NewService(gate Gate, assets AssetSource, off MetadataSource, resolver MarketResolver, llm Verdicter, lggr logger.Logger) *Service {
	return &Service{
		gate:     gate,
		assets:   assets,
		offchain: off,
		market:   resolver,
		llm:      llm,
		lggr:     lggr.Named("scan"),
	}
}

// Analyze runs one scan end to end. The scan is only recorded when the
// report could be built.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	lggr := s.lggr.With("wallet", req.UserWallet, "token", req.TokenAddress)

	if err := s.gate.Check(ctx, req.UserWallet); err != nil {
		return nil, err
	}

	asset, err := s.assets.GetAsset(ctx, req.TokenAddress)
	if err != nil {
		if errors.Is(err, helius.ErrNoAsset) {
			return nil, ErrNoAssetData
		}
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}

	var off *offchain.Metadata
	if uri := asset.Content.JSONURI; uri != "" {
		off, err = s.offchain.FetchMetadata(ctx, uri)
		if err != nil {
			lggr.Warnw("off-chain metadata unavailable", "uri", uri, "err", err)
			off = nil
		}
	}

	mc := s.market.Resolve(ctx, market.Query{Mint: req.TokenAddress, Asset: asset})
	facts := MergeFacts(asset, off)
	score := Score(facts)
	recommendation := Recommend(mc)

	raw, err := s.llm.Verdict(ctx, VerdictPrompt(facts.Symbol, score, recommendation))
	if err != nil {
		return nil, fmt.Errorf("failed to get verdict: %w", err)
	}

	html, err := report.Render(report.Report{
		Name:           facts.Name,
		Symbol:         facts.Symbol,
		MarketCap:      mc.MarketCap,
		MarketCapKnown: mc.Known,
		Website:        facts.Website,
		Twitter:        facts.Twitter,
		Immutable:      facts.Immutable,
		Score:          score,
		Verdict:        report.ParseVerdict(raw),
	})
	if err != nil {
		return nil, err
	}

	record := &models.Scan{
		WalletAddress:    req.UserWallet,
		TokenAddress:     req.TokenAddress,
		InitialMarketCap: mc.MarketCap,
	}
	if err := s.gate.Record(ctx, record); err != nil {
		return nil, err
	}

	lggr.Infow("scan completed", "score", score, "marketCap", mc.MarketCap, "source", mc.Source, "known", mc.Known)

	return &Result{
		Report:         html,
		Facts:          facts,
		Score:          score,
		Market:         mc,
		Recommendation: recommendation,
		Scan:           record,
	}, nil
}

func Recommend(mc market.Result) string {
	switch {
	case !mc.Known:
		return RecommendationUnknown
	case mc.MarketCap < MoonThreshold:
		return RecommendationRun
	default:
		return RecommendationMoon
	}
}

func VerdictPrompt(symbol string, score int, recommendation string) string {
	return fmt.Sprintf(`You are a witty Solana degen. $%s scored %d/10 with an FDV recommendation of "%s". Write a funny, one-sentence HTML verdict with <h3>Final Verdict</h3>, no code blocks.`,
		symbol, score, recommendation)
}
