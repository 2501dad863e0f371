// Package exec drives the portfolio through one calendar date at a time. The
// in-day order is load-bearing: signal sells run first so the cash they free is
// available when the day's buys are sized, then stop/target exits, then buys,
// then a mark-to-market snapshot.
package exec

import (
	"context"
	"math"
	"sort"
	"time"

	"finbot/internal/logger"
	"finbot/internal/portfolio"
	"finbot/internal/signals"
	"finbot/internal/store"
	"finbot/internal/types"
)

// minScoreWeight floors candidate scores for score-weighted sizing so a flat
// score still normalizes instead of dividing by zero.
const minScoreWeight = 1e-9

type candidate struct {
	ticker string
	price  float64
	score  float64
}

// Advance resolves one trading date against the ledger. Tickers with no price
// row today are silently excluded from every step.
func Advance(ctx context.Context, date time.Time, series map[string]*signals.Series, port *portfolio.Portfolio, cfg *store.Config) {
	buys, sells := collectCandidates(ctx, date, series, port, cfg.Backtest.TopNBuys)
	execSells(ctx, date, sells, port)
	sweepStopsAndTargets(ctx, date, series, port)
	execBuys(ctx, date, buys, port, cfg)
	markToMarket(date, series, port)
}

// collectCandidates gathers the day's eligible buys and sells. A buy needs a Buy
// signal on a flat ticker; a sell needs a Sell signal on a long ticker, so a
// ticker can never be both. Buys come back score-ranked and truncated to topN.
func collectCandidates(ctx context.Context, date time.Time, series map[string]*signals.Series, port *portfolio.Portfolio, topN int) (buys, sells []candidate) {
	for ticker, s := range series {
		if s == nil {
			continue
		}
		row, ok := s.Row(date)
		if !ok {
			continue
		}
		switch {
		case row.Sig == types.Buy && !port.IsLong(ticker):
			buys = append(buys, candidate{ticker: ticker, price: row.ExecPrice, score: row.RankScore()})
			logger.Decision(ctx, ticker, string(row.Sig), row.RankScore(), "date", date.Format("2006-01-02"))
		case row.Sig == types.Sell && port.IsLong(ticker):
			sells = append(sells, candidate{ticker: ticker, price: row.ExecPrice})
			logger.Decision(ctx, ticker, string(row.Sig), row.RankScore(), "date", date.Format("2006-01-02"))
		}
	}

	// Ticker tie-breaks keep runs reproducible regardless of map order.
	sort.Slice(sells, func(i, j int) bool { return sells[i].ticker < sells[j].ticker })
	sort.Slice(buys, func(i, j int) bool {
		if buys[i].score != buys[j].score {
			return buys[i].score > buys[j].score
		}
		return buys[i].ticker < buys[j].ticker
	})
	if len(buys) > topN {
		buys = buys[:topN]
	}
	return buys, sells
}

// execSells executes every signal-driven sell unconditionally.
func execSells(ctx context.Context, date time.Time, sells []candidate, port *portfolio.Portfolio) {
	for _, c := range sells {
		if port.Sell(c.ticker, c.price, date, types.ReasonIndicator) {
			if t := lastTrade(port); t != nil {
				logger.Trade(ctx, t.Ticker, string(t.Side), t.Shares, t.Price, t.Fee, string(t.Reason), "date", date.Format("2006-01-02"))
			}
		}
	}
}

// sweepStopsAndTargets closes remaining longs whose close breached their fixed
// target or stop level. Target is checked first: when a wide bar trips both in
// one day, the exit books as profit-taking.
func sweepStopsAndTargets(ctx context.Context, date time.Time, series map[string]*signals.Series, port *portfolio.Portfolio) {
	var targets, stops []candidate
	for _, ticker := range port.OpenTickers() {
		s := series[ticker]
		if s == nil {
			continue
		}
		row, ok := s.Row(date)
		if !ok {
			continue
		}
		pos, ok := port.Position(ticker)
		if !ok {
			continue
		}
		switch {
		case pos.Target > 0 && row.Close >= pos.Target:
			targets = append(targets, candidate{ticker: ticker, price: row.Close})
		case pos.StopLoss > 0 && row.Close <= pos.StopLoss:
			stops = append(stops, candidate{ticker: ticker, price: row.Close})
		}
	}
	for _, c := range targets {
		if port.Sell(c.ticker, c.price, date, types.ReasonTarget) {
			if t := lastTrade(port); t != nil {
				logger.Trade(ctx, t.Ticker, string(t.Side), t.Shares, t.Price, t.Fee, string(t.Reason), "date", date.Format("2006-01-02"))
			}
		}
	}
	for _, c := range stops {
		if port.Sell(c.ticker, c.price, date, types.ReasonStopLoss) {
			if t := lastTrade(port); t != nil {
				logger.Trade(ctx, t.Ticker, string(t.Side), t.Shares, t.Price, t.Fee, string(t.Reason), "date", date.Format("2006-01-02"))
			}
		}
	}
}

// execBuys sizes and executes the kept buy candidates. Deployable cash is capped
// by the daily exposure fraction of total equity; each buy floors to whole
// shares, and an unaffordable buy is skipped rather than partially filled.
func execBuys(ctx context.Context, date time.Time, buys []candidate, port *portfolio.Portfolio, cfg *store.Config) {
	if len(buys) == 0 {
		return
	}
	deployable := math.Min(port.Cash(), port.TotalValue()*cfg.Backtest.MaxDailyExposurePct)
	if deployable <= 0 {
		return
	}

	allocations := make([]float64, len(buys))
	if cfg.Backtest.AllocateEqualOnBuy {
		per := deployable / float64(len(buys))
		for i := range allocations {
			allocations[i] = per
		}
	} else {
		var total float64
		floored := make([]float64, len(buys))
		for i, c := range buys {
			floored[i] = math.Max(c.score, minScoreWeight)
			total += floored[i]
		}
		for i := range allocations {
			allocations[i] = deployable * floored[i] / total
		}
	}

	for i, c := range buys {
		if port.Buy(c.ticker, c.price, date, allocations[i], types.ReasonIndicator) {
			if t := lastTrade(port); t != nil {
				logger.Trade(ctx, t.Ticker, string(t.Side), t.Shares, t.Price, t.Fee, string(t.Reason),
					"date", date.Format("2006-01-02"), "score", c.score)
			}
		} else {
			logger.Debug(ctx, "Buy skipped", "ticker", c.ticker, "price", c.price, "cash_slice", allocations[i])
		}
	}
}

// markToMarket snapshots equity using today's closes for tickers that traded.
func markToMarket(date time.Time, series map[string]*signals.Series, port *portfolio.Portfolio) {
	closes := make(map[string]float64)
	for ticker, s := range series {
		if s == nil {
			continue
		}
		if row, ok := s.Row(date); ok {
			closes[ticker] = row.Close
		}
	}
	port.MarkToMarket(date, closes)
}

func lastTrade(port *portfolio.Portfolio) *types.Trade {
	trades := port.Trades()
	if len(trades) == 0 {
		return nil
	}
	return &trades[len(trades)-1]
}
