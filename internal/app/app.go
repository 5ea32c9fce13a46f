package app

import (
	"context"
	"fmt"

	"auditor/internal/card"
	"auditor/internal/config"
	"auditor/internal/logger"
	"auditor/internal/market"
	"auditor/internal/pkg/birdeye"
	"auditor/internal/pkg/fetch"
	"auditor/internal/pkg/gopenai"
	"auditor/internal/pkg/helius"
	"auditor/internal/pkg/moralis"
	"auditor/internal/pkg/offchain"
	"auditor/internal/pkg/openai"
	"auditor/internal/pkg/solana"
	"auditor/internal/scan"

	"gorm.io/gorm"
)

// LLM is what both OpenAI SDK backends provide.
type LLM interface {
	Verdict(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// App holds the wired services shared by the HTTP server and the CLI.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Log      logger.Logger
	Fetch    *fetch.Client
	Helius   *helius.Client
	Offchain *offchain.Client
	Market   *market.Aggregator
	LLM      LLM
	Gate     scan.Gate
	Scans    *scan.Service
	Cards    *card.Service
}

// NewSources wires the upstream data clients and the market cap chain. It
// needs neither a database nor an LLM key.
func NewSources(cfg *config.Config, lggr logger.Logger) *App {
	fc := fetch.NewClient(cfg.HTTPTimeout, cfg.HTTPRetryAttempts, cfg.HTTPRetryDelay)
	hc := helius.NewClient(cfg.HeliusAPIKey, cfg.HeliusRPCURL, cfg.HeliusAPIURL, fc)

	return &App{
		Config:   cfg,
		Log:      lggr,
		Fetch:    fc,
		Helius:   hc,
		Offchain: offchain.NewClient(fc),
		Market:   market.NewAggregator(lggr, Providers(cfg, fc, hc, lggr)...),
	}
}

// Providers returns the market cap chain in priority order. Sources without
// a key are left out.
func Providers(cfg *config.Config, fc *fetch.Client, hc *helius.Client, lggr logger.Logger) []market.Provider {
	var providers []market.Provider
	if cfg.MoralisAPIKey != "" {
		providers = append(providers, &market.MoralisFDV{Client: moralis.NewClient(cfg.MoralisAPIKey, cfg.MoralisAPIURL, fc)})
	} else {
		lggr.Warn("MORALIS_API_KEY not set, skipping moralis-fdv")
	}

	providers = append(providers,
		&market.HeliusAsset{Client: hc},
		&market.HeliusPrice{Client: hc},
	)

	if cfg.BirdeyeAPIKey != "" {
		providers = append(providers, &market.Birdeye{Client: birdeye.NewClient(cfg.BirdeyeAPIKey, cfg.BirdeyeAPIURL, fc)})
	} else {
		lggr.Warn("BIRDEYE_API_KEY not set, skipping birdeye")
	}
	return providers
}

// New wires everything the API server needs.
func New(cfg *config.Config, conn *gorm.DB, lggr logger.Logger) (*App, error) {
	a := NewSources(cfg, lggr)
	a.DB = conn

	llm, err := NewLLM(cfg)
	if err != nil {
		return nil, err
	}
	a.LLM = llm

	gate, err := NewGate(cfg, conn, a.Fetch, lggr)
	if err != nil {
		return nil, err
	}
	a.Gate = gate

	a.Scans = scan.NewService(gate, a.Helius, a.Offchain, a.Market, llm, lggr)
	a.Cards = card.NewService(cfg.FontPath, llm, a.Fetch, lggr)

	lggr.Infow("services wired", "gate", cfg.ScanGate, "llmSDK", cfg.LLMSDK)
	return a, nil
}

func NewLLM(cfg *config.Config) (LLM, error) {
	switch cfg.LLMSDK {
	case config.SDKOpenAIGo, "":
		c, err := openai.NewClient(openai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.ChatModel,
			ImageModel: cfg.ImageModel,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.SDKGoOpenAI:
		c, err := gopenai.NewClient(gopenai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ChatModel:  cfg.ChatModel,
			ImageModel: cfg.ImageModel,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown LLM_SDK %q", cfg.LLMSDK)
	}
}

func NewGate(cfg *config.Config, conn *gorm.DB, fc *fetch.Client, lggr logger.Logger) (scan.Gate, error) {
	switch cfg.ScanGate {
	case config.GateLimit, "":
		return scan.NewLimitGate(conn, cfg.ScanLimit, cfg.ScanWindow, cfg.AllowlistedWallets, lggr), nil
	case config.GateHolder:
		checker := solana.NewHolderChecker(cfg.SolanaRPCURL, fc.HTTPClient())
		return scan.NewHolderGate(conn, checker, cfg.GateTokenMint, cfg.GateMinBalance, cfg.AllowlistedWallets, lggr), nil
	default:
		return nil, fmt.Errorf("unknown SCAN_GATE %q", cfg.ScanGate)
	}
}
