package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	GateLimit  = "limit"
	GateHolder = "holder"

	SDKOpenAIGo = "openai-go"
	SDKGoOpenAI = "go-openai"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	DatabaseURL string // SQLite path or postgres:// URL
	LogLevel    string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMSDK        string
	ChatModel     string
	ImageModel    string

	HeliusAPIKey  string
	HeliusRPCURL  string
	HeliusAPIURL  string
	MoralisAPIKey string
	MoralisAPIURL string
	BirdeyeAPIKey string
	BirdeyeAPIURL string

	AllowlistedWallets []string
	ScanGate           string
	ScanLimit          int
	ScanWindow         time.Duration
	GateTokenMint      string
	GateMinBalance     uint64
	SolanaRPCURL       string

	FontPath          string
	HTTPTimeout       time.Duration
	HTTPRetryAttempts uint
	HTTPRetryDelay    time.Duration
}

var ErrMissingSetting = errors.New("missing required setting")

// LoadConfig reads configuration from environment variables (.env file)
func LoadConfig() (*Config, error) {
	// Load .env file. In production, env variables are often set directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:        v.GetString("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		OpenAIAPIKey:  v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
		LLMSDK:        strings.ToLower(v.GetString("LLM_SDK")),
		ChatModel:     v.GetString("CHAT_MODEL"),
		ImageModel:    v.GetString("IMAGE_MODEL"),

		HeliusAPIKey:  v.GetString("HELIUS_API_KEY"),
		HeliusRPCURL:  strings.TrimRight(v.GetString("HELIUS_RPC_URL"), "/"),
		HeliusAPIURL:  strings.TrimRight(v.GetString("HELIUS_API_URL"), "/"),
		MoralisAPIKey: v.GetString("MORALIS_API_KEY"),
		MoralisAPIURL: strings.TrimRight(v.GetString("MORALIS_API_URL"), "/"),
		BirdeyeAPIKey: v.GetString("BIRDEYE_API_KEY"),
		BirdeyeAPIURL: strings.TrimRight(v.GetString("BIRDEYE_API_URL"), "/"),

		AllowlistedWallets: splitList(v.GetString("ALLOWLISTED_WALLETS")),
		ScanGate:           strings.ToLower(v.GetString("SCAN_GATE")),
		ScanLimit:          v.GetInt("SCAN_LIMIT"),
		ScanWindow:         v.GetDuration("SCAN_WINDOW"),
		GateTokenMint:      v.GetString("GATE_TOKEN_MINT"),
		GateMinBalance:     v.GetUint64("GATE_MIN_BALANCE"),
		SolanaRPCURL:       v.GetString("SOLANA_RPC_URL"),

		FontPath:          v.GetString("FONT_PATH"),
		HTTPTimeout:       v.GetDuration("HTTP_TIMEOUT"),
		HTTPRetryAttempts: v.GetUint("HTTP_RETRY_ATTEMPTS"),
		HTTPRetryDelay:    v.GetDuration("HTTP_RETRY_DELAY"),
	}

	if cfg.ScanWindow <= 0 {
		return nil, fmt.Errorf("invalid SCAN_WINDOW %q", v.GetString("SCAN_WINDOW"))
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("DATABASE_URL", "mooner.db")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("LLM_SDK", SDKOpenAIGo)
	v.SetDefault("CHAT_MODEL", "gpt-4o")
	v.SetDefault("IMAGE_MODEL", "dall-e-3")

	v.SetDefault("HELIUS_RPC_URL", "https://mainnet.helius-rpc.com")
	v.SetDefault("HELIUS_API_URL", "https://api.helius.xyz")
	v.SetDefault("MORALIS_API_URL", "https://solana-gateway.moralis.io")
	v.SetDefault("BIRDEYE_API_URL", "https://public-api.birdeye.so")

	v.SetDefault("ALLOWLISTED_WALLETS", "HgLjKiQoWK4HU4dBo9y1mP6QNu4af5vT51fFc6LupaVt")
	v.SetDefault("SCAN_GATE", GateLimit)
	v.SetDefault("SCAN_LIMIT", 2)
	v.SetDefault("SCAN_WINDOW", "24h")
	v.SetDefault("GATE_MIN_BALANCE", 1)
	v.SetDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")

	v.SetDefault("FONT_PATH", "PressStart2P-Regular.ttf")
	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("HTTP_RETRY_ATTEMPTS", 2)
	v.SetDefault("HTTP_RETRY_DELAY", "500ms")
}

// Validate only checks that the credentials the server cannot run without are present.
func (c *Config) Validate() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.HeliusAPIKey == "" {
		missing = append(missing, "HELIUS_API_KEY")
	}
	if c.ScanGate == GateHolder && c.GateTokenMint == "" {
		missing = append(missing, "GATE_TOKEN_MINT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}

	switch c.ScanGate {
	case GateLimit, GateHolder:
	default:
		return fmt.Errorf("unknown SCAN_GATE %q", c.ScanGate)
	}

	switch c.LLMSDK {
	case SDKOpenAIGo, SDKGoOpenAI:
	default:
		return fmt.Errorf("unknown LLM_SDK %q", c.LLMSDK)
	}

	return nil
}

func (c *Config) IsAllowlisted(wallet string) bool {
	for _, w := range c.AllowlistedWallets {
		if w == wallet {
			return true
		}
	}
	return false
}

// viper's GetStringSlice splits on whitespace only, env lists here are comma separated.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
