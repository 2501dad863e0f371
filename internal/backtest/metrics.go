package backtest

import (
	"math"
	"time"

	"finbot/internal/types"
)

// annualTradingDays scales daily return moments up to an annual Sharpe.
const annualTradingDays = 252

// Summary is the scalar report of one simulation run.
type Summary struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	StartEquity float64   `json:"start_equity"`
	EndEquity   float64   `json:"end_equity"`
	TotalReturn float64   `json:"total_return"`
	CAGR        float64   `json:"cagr"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Sharpe      float64   `json:"sharpe_naive"`
	Trades      int       `json:"trades"`
}

// Empty reports whether the summary came from a run with no equity history.
func (s Summary) Empty() bool { return s.Start.IsZero() }

// Summarize reduces an ordered equity log to the run report. An empty log yields
// an empty summary, not an error.
func Summarize(equity []types.EquitySnapshot, trades int) Summary {
	if len(equity) == 0 {
		return Summary{}
	}

	first := equity[0]
	last := equity[len(equity)-1]

	s := Summary{
		Start:       first.Date,
		End:         last.Date,
		StartEquity: first.Equity,
		EndEquity:   last.Equity,
		Trades:      trades,
	}
	if first.Equity != 0 {
		s.TotalReturn = last.Equity/first.Equity - 1
	}

	// CAGR, guarded against zero or negative elapsed time.
	days := last.Date.Sub(first.Date).Hours() / 24
	years := math.Max(1e-9, days/365.25)
	if first.Equity > 0 && last.Equity > 0 {
		s.CAGR = math.Pow(last.Equity/first.Equity, 1/years) - 1
	}

	// Max drawdown against the running peak.
	peak := first.Equity
	var maxDD float64
	for _, e := range equity {
		if e.Equity > peak {
			peak = e.Equity
		}
		if peak > 0 {
			if dd := e.Equity/peak - 1; dd < maxDD {
				maxDD = dd
			}
		}
	}
	s.MaxDrawdown = maxDD

	s.Sharpe = naiveSharpe(equity)
	return s
}

// naiveSharpe annualizes the mean/std of daily equity returns; the first day's
// return counts as zero and a flat curve scores zero rather than dividing away.
func naiveSharpe(equity []types.EquitySnapshot) float64 {
	rets := make([]float64, len(equity))
	for i := 1; i < len(equity); i++ {
		if equity[i-1].Equity != 0 {
			rets[i] = equity[i].Equity/equity[i-1].Equity - 1
		}
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance float64
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	if len(rets) > 1 {
		variance /= float64(len(rets) - 1)
	}
	std := math.Sqrt(variance)

	return math.Sqrt(annualTradingDays) * mean / (std + 1e-12)
}
