package scan

import (
	"strings"

	"auditor/internal/pkg/helius"
	"auditor/internal/pkg/offchain"
	"auditor/internal/report"
)

// TokenFacts are the display facts merged from on-chain and off-chain metadata.
type TokenFacts struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Website   string `json:"website"`
	Twitter   string `json:"twitter"`
	Immutable bool   `json:"immutable"`
}

func (f TokenFacts) HasWebsite() bool { return f.Website != report.NotAvailable }
func (f TokenFacts) HasTwitter() bool { return f.Twitter != report.NotAvailable }

// MergeFacts prefers the asset's on-chain content and falls back to the
// off-chain document. off may be nil.
func MergeFacts(asset *helius.Asset, off *offchain.Metadata) TokenFacts {
	if off == nil {
		off = &offchain.Metadata{}
	}

	name, symbol := asset.Content.Metadata.Name, asset.Content.Metadata.Symbol
	if name == "" && symbol == "" {
		name, symbol = off.Name, off.Symbol
	}

	website, twitter := asset.Content.Links.Website, asset.Content.Links.Twitter
	if website == "" && twitter == "" {
		website, twitter = off.Properties.Links.Website, off.Properties.Links.Twitter
	}
	if website == "" {
		website = off.Website
	}
	if twitter == "" {
		twitter = off.Twitter
	}

	return TokenFacts{
		Name:      clean(name),
		Symbol:    clean(symbol),
		Website:   clean(website),
		Twitter:   clean(twitter),
		Immutable: !asset.IsMutable(),
	}
}

// Score adds 5 for an immutable contract, 3 for a website and 2 for a twitter link.
func Score(f TokenFacts) int {
	score := 0
	if f.Immutable {
		score += 5
	}
	if f.HasWebsite() {
		score += 3
	}
	if f.HasTwitter() {
		score += 2
	}
	return score
}

func clean(s string) string {
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" {
		return report.NotAvailable
	}
	return s
}
