package market

import (
	"context"
	"errors"

	"auditor/internal/logger"
)

// Failure records why one provider did not produce a value.
type Failure struct {
	Provider string
	Err      error
}

// Result of a resolution. Known is false when every provider failed, in which
// case MarketCap is 0 and Failures explains why.
type Result struct {
	MarketCap float64
	Source    string
	Known     bool
	Failures  []Failure
}

// Aggregator walks its providers in order and keeps the first usable value.
type Aggregator struct {
	providers []Provider
	lggr      logger.Logger
}

func NewAggregator(lggr logger.Logger, providers ...Provider) *Aggregator {
	return &Aggregator{providers: providers, lggr: lggr.Named("market")}
}

func (a *Aggregator) Resolve(ctx context.Context, q Query) Result {
	var res Result

	for _, p := range a.providers {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, Failure{Provider: p.Name(), Err: err})
			break
		}

		mc, err := p.MarketCap(ctx, q)
		if err == nil && mc <= 0 {
			err = ErrNoData
		}
		if err != nil {
			err = NewProviderError(p.Name(), q.Mint, err)
			res.Failures = append(res.Failures, Failure{Provider: p.Name(), Err: err})
			if errors.Is(err, ErrNoData) {
				a.lggr.Infow("provider has no market cap", "provider", p.Name(), "mint", q.Mint)
			} else {
				a.lggr.Warnw("provider failed", "provider", p.Name(), "mint", q.Mint, "err", err)
			}
			continue
		}

		res.MarketCap = mc
		res.Source = p.Name()
		res.Known = true
		a.lggr.Infow("market cap resolved", "provider", p.Name(), "mint", q.Mint, "marketCap", mc, "fallbacks", len(res.Failures))
		return res
	}

	a.lggr.Warnw("market cap unknown", "mint", q.Mint, "failures", len(res.Failures))
	return res
}
