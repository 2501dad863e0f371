// Package backtest runs a full simulation over the unioned trading calendar and
// reduces the resulting equity log to summary statistics.
package backtest

import (
	"context"

	"finbot/internal/exec"
	"finbot/internal/logger"
	"finbot/internal/portfolio"
	"finbot/internal/signals"
	"finbot/internal/store"
)

// Result bundles a finished run: the summary plus the ledger that produced it.
type Result struct {
	Summary   Summary
	Portfolio *portfolio.Portfolio
}

// CostsFromConfig maps the configured frictions onto the ledger's cost model.
func CostsFromConfig(cfg *store.Config) portfolio.Costs {
	return portfolio.Costs{
		FeeBps:      cfg.FeeBps,
		SlippageBps: cfg.SlippageBps,
		StopPct:     cfg.StopPct,
		TargetPct:   cfg.TargetPct,
	}
}

// Run simulates every date in the union calendar against a fresh ledger. Dates
// resolve strictly in order, one at a time; given identical series and config
// the run is fully deterministic.
func Run(ctx context.Context, series map[string]*signals.Series, cfg *store.Config) *Result {
	op := logger.StartOperation(ctx, "backtest.run", "tickers", len(series))
	ctx = op.Context()

	port := portfolio.New(cfg.StartingCash, CostsFromConfig(cfg))
	calendar := signals.UnionCalendar(series)
	for _, date := range calendar {
		exec.Advance(ctx, date, series, port, cfg)
	}

	summary := Summarize(port.Equity(), len(port.Trades()))
	op.End("dates", len(calendar), "trades", len(port.Trades()))
	return &Result{Summary: summary, Portfolio: port}
}
