package exec

import (
	"context"
	"math"
	"strings"
	"time"

	"finbot/internal/logger"
	"finbot/internal/portfolio"
	"finbot/internal/signals"
	"finbot/internal/types"
)

// Fill reports one user-confirmed buy that actually executed.
type Fill struct {
	Ticker string
	Price  float64
}

// ExecuteUserBuys buys the tickers a user confirmed from a recommendation,
// splitting the ledger's free cash equally across the ones that can be priced
// from their signal row for the date. Tickers with no usable price are skipped.
// The ledger semantics are identical to scheduler-driven buys.
func ExecuteUserBuys(ctx context.Context, series map[string]*signals.Series, tickers []string, date time.Time, port *portfolio.Portfolio) []Fill {
	type priced struct {
		ticker string
		price  float64
	}
	var candidates []priced
	for _, raw := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" {
			continue
		}
		s := series[ticker]
		if s == nil {
			logger.Warn(ctx, "No signal series for confirmed ticker", "ticker", ticker)
			continue
		}
		px := execPriceFor(s, date)
		if math.IsNaN(px) || px <= 0 {
			logger.Warn(ctx, "No usable execution price for confirmed ticker", "ticker", ticker, "date", date.Format("2006-01-02"))
			continue
		}
		candidates = append(candidates, priced{ticker: ticker, price: px})
	}
	if len(candidates) == 0 {
		return nil
	}

	cashEach := port.Cash() / float64(len(candidates))
	var fills []Fill
	for _, c := range candidates {
		if port.Buy(c.ticker, c.price, date, cashEach, types.ReasonUser) {
			fills = append(fills, Fill{Ticker: c.ticker, Price: c.price})
			if t := lastTrade(port); t != nil {
				logger.Trade(ctx, t.Ticker, string(t.Side), t.Shares, t.Price, t.Fee, string(t.Reason), "date", date.Format("2006-01-02"))
			}
		}
	}
	return fills
}

// execPriceFor resolves a fill price for the date: the row's ExecPrice, falling
// back to its open when the exec price is missing or non-positive.
func execPriceFor(s *signals.Series, date time.Time) float64 {
	row, ok := s.Row(date)
	if !ok {
		return math.NaN()
	}
	if !math.IsNaN(row.ExecPrice) && row.ExecPrice > 0 {
		return row.ExecPrice
	}
	if row.Open > 0 {
		return row.Open
	}
	return math.NaN()
}
