// Package signals turns raw daily price series into lagged trade signals. All
// indicator scores live in [-1, +1]; a day without enough history scores NaN and
// is skipped from the composite mean, so warmup rows always come out as Hold.
package signals

import (
	"math"
	"sort"
	"time"

	"finbot/internal/store"
	"finbot/internal/ta"
	"finbot/internal/types"
)

// volNormWindow is the lookback used to normalize the MACD histogram against its
// own recent magnitude.
const volNormWindow = 20

// Indicator maps a candle series to a per-day score series in [-1, +1].
type Indicator func(candles []types.Candle, cfg *store.Config) []float64

var registry = map[string]Indicator{
	"ma_cross":  maCrossScore,
	"rsi":       rsiScore,
	"macd":      macdScore,
	"bollinger": bollingerScore,
}

// Series holds one ticker's signal rows with O(1) lookup by date.
type Series struct {
	Ticker string
	Rows   []types.SignalRow

	index map[int64]int
}

// NewSeries wraps pre-computed rows into a lookup-ready series.
func NewSeries(ticker string, rows []types.SignalRow) *Series {
	s := &Series{
		Ticker: ticker,
		Rows:   rows,
		index:  make(map[int64]int, len(rows)),
	}
	for i, r := range rows {
		s.index[Day(r.Date).Unix()] = i
	}
	return s
}

// Build derives the full signal series for one ticker. A nil series means there
// was no price data at all.
func Build(ticker string, candles []types.Candle, cfg *store.Config) *Series {
	if len(candles) == 0 {
		return nil
	}

	scores := make([][]float64, 0, len(cfg.Signals.Indicators))
	for _, name := range cfg.Signals.Indicators {
		fn, ok := registry[name]
		if !ok {
			continue
		}
		scores = append(scores, fn(candles, cfg))
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}
	atr := ta.ATR(highs, lows, closes, cfg.Signals.ATR.Period)

	s := &Series{
		Ticker: ticker,
		Rows:   make([]types.SignalRow, len(candles)),
		index:  make(map[int64]int, len(candles)),
	}
	for i, c := range candles {
		raw := compositeAt(scores, i)
		row := types.SignalRow{
			Date:      Day(c.Date),
			Open:      c.Open,
			Close:     c.Close,
			RawScore:  raw,
			RawSignal: discretize(raw, cfg),
			Sig:       types.Hold,
			Score:     math.NaN(),
			ExecPrice: c.Open,
			ATR:       math.NaN(),
		}
		if i > 0 {
			prev := s.Rows[i-1]
			row.Sig = prev.RawSignal
			row.Score = prev.RawScore
			row.ATR = atr[i-1]
		}
		s.Rows[i] = row
		s.index[row.Date.Unix()] = i
	}
	return s
}

// Row returns the signal row for a calendar date, if the ticker traded that day.
func (s *Series) Row(date time.Time) (types.SignalRow, bool) {
	i, ok := s.index[Day(date).Unix()]
	if !ok {
		return types.SignalRow{}, false
	}
	return s.Rows[i], true
}

// Dates returns the series' trading dates in order.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Date
	}
	return out
}

// UnionCalendar merges every series' trading dates into one sorted calendar.
func UnionCalendar(series map[string]*Series) []time.Time {
	seen := map[int64]time.Time{}
	for _, s := range series {
		if s == nil {
			continue
		}
		for _, r := range s.Rows {
			seen[r.Date.Unix()] = r.Date
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// BuyListForDate returns the sorted tickers whose lagged signal on date is Buy.
func BuyListForDate(series map[string]*Series, date time.Time) []string {
	var out []string
	for ticker, s := range series {
		if s == nil {
			continue
		}
		if row, ok := s.Row(date); ok && row.Sig == types.Buy {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}

// Day normalizes a timestamp to UTC midnight, the calendar key used everywhere.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// compositeAt averages the indicator scores at index i, skipping NaN values.
// All-NaN means no indicator has enough history yet: the composite stays NaN.
func compositeAt(scores [][]float64, i int) float64 {
	var sum float64
	var n int
	for _, s := range scores {
		if i >= len(s) || math.IsNaN(s[i]) {
			continue
		}
		sum += s[i]
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// discretize applies the configured thresholds with strict inequalities; a score
// sitting exactly on a threshold is a Hold.
func discretize(score float64, cfg *store.Config) types.Signal {
	switch {
	case math.IsNaN(score):
		return types.Hold
	case score > cfg.Signals.BuyThreshold:
		return types.Buy
	case score < cfg.Signals.SellThreshold:
		return types.Sell
	default:
		return types.Hold
	}
}

// maCrossScore is +1 while the short SMA is above the long one, -1 below, 0 on a
// dead-even cross.
func maCrossScore(candles []types.Candle, cfg *store.Config) []float64 {
	closes := closeSeries(candles)
	short := ta.SMA(closes, cfg.Signals.MACross.ShortWindow)
	long := ta.SMA(closes, cfg.Signals.MACross.LongWindow)
	out := make([]float64, len(closes))
	for i := range closes {
		switch {
		case math.IsNaN(short[i]) || math.IsNaN(long[i]):
			out[i] = math.NaN()
		case short[i] > long[i]:
			out[i] = 1
		case short[i] < long[i]:
			out[i] = -1
		default:
			out[i] = 0
		}
	}
	return out
}

// rsiScore maps RSI linearly: deep oversold approaches +1, deep overbought -1,
// the neutral band scores 0.
func rsiScore(candles []types.Candle, cfg *store.Config) []float64 {
	closes := closeSeries(candles)
	rsi := ta.RSI(closes, cfg.Signals.RSI.Period)
	oversold := cfg.Signals.RSI.Oversold
	overbought := cfg.Signals.RSI.Overbought
	out := make([]float64, len(closes))
	for i, v := range rsi {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v <= oversold:
			out[i] = clip((oversold - v) / oversold)
		case v >= overbought:
			out[i] = clip(-(v - overbought) / (100 - overbought))
		default:
			out[i] = 0
		}
	}
	return out
}

// macdScore normalizes the MACD histogram by its rolling 95th-percentile
// magnitude so the score stays comparable across volatility regimes.
func macdScore(candles []types.Candle, cfg *store.Config) []float64 {
	closes := closeSeries(candles)
	fast := ta.EMA(closes, cfg.Signals.MACD.Fast)
	slow := ta.EMA(closes, cfg.Signals.MACD.Slow)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	sig := ta.EMA(macd, cfg.Signals.MACD.Signal)
	hist := make([]float64, len(closes))
	absHist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - sig[i]
		absHist[i] = math.Abs(hist[i])
	}
	vol := ta.RollingQuantile(absHist, volNormWindow, 0.95)
	out := make([]float64, len(closes))
	for i := range closes {
		if math.IsNaN(vol[i]) || vol[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = clip(hist[i] / vol[i])
	}
	return out
}

// bollingerScore is +1 below the lower band (oversold), -1 above the upper band.
func bollingerScore(candles []types.Candle, cfg *store.Config) []float64 {
	closes := closeSeries(candles)
	_, upper, lower := ta.Bollinger(closes, cfg.Signals.Bollinger.Period, cfg.Signals.Bollinger.Std)
	out := make([]float64, len(closes))
	for i, c := range closes {
		switch {
		case math.IsNaN(upper[i]) || math.IsNaN(lower[i]):
			out[i] = math.NaN()
		case c < lower[i]:
			out[i] = 1
		case c > upper[i]:
			out[i] = -1
		default:
			out[i] = 0
		}
	}
	return out
}

func closeSeries(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
