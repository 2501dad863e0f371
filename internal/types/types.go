package types

import (
	"math"
	"time"
)

// Candle is one daily OHLC bar for a single instrument.
type Candle struct {
	Date                   time.Time
	Open, High, Low, Close float64
	Vol                    float64
}

// Signal is a discrete daily trading decision.
type Signal string

const (
	Buy  Signal = "Buy"
	Sell Signal = "Sell"
	Hold Signal = "Hold"
)

// Side enumerates trade directions. Long-only: every Sell closes a position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Reason records why a trade happened.
type Reason string

const (
	ReasonIndicator Reason = "indicator"
	ReasonTarget    Reason = "target"
	ReasonStopLoss  Reason = "stoploss"
	ReasonUser      Reason = "user"
)

// SignalRow is the per-ticker, per-day output of the signal engine.
// Sig and Score are RawSignal and RawScore lagged by one row, so a decision made
// at D-1's close is executed at D's open and never sees D's own close.
type SignalRow struct {
	Date      time.Time
	Open      float64
	Close     float64
	RawScore  float64 // composite score at this day's close, NaN during warmup
	RawSignal Signal
	Sig       Signal  // lagged: what to do at this day's open
	Score     float64 // lagged composite score, NaN during warmup
	ExecPrice float64 // canonical fill price before slippage (= Open)
	ATR       float64 // lagged volatility estimate, NaN during warmup
}

// Tradeable reports whether the row carries an executable lagged decision.
func (r SignalRow) Tradeable() bool {
	return r.Sig == Buy || r.Sig == Sell
}

// RankScore is the lagged score with NaN collapsed to zero for candidate ranking.
func (r SignalRow) RankScore() float64 {
	if math.IsNaN(r.Score) {
		return 0
	}
	return r.Score
}

// Position is a single open long position. StopLoss and Target are fixed at entry
// and never recomputed; zero means the level is not set.
type Position struct {
	Ticker     string
	Shares     int
	EntryPrice float64
	StopLoss   float64
	Target     float64
}

// Trade is one immutable entry in the append-only trade log. Price is the
// post-slippage fill.
type Trade struct {
	Date   time.Time
	Ticker string
	Side   Side
	Price  float64
	Shares int
	Fee    float64
	Reason Reason
}

// EquitySnapshot is one mark-to-market observation of the whole ledger.
type EquitySnapshot struct {
	Date     time.Time
	Equity   float64
	Cash     float64
	PosValue float64
}
