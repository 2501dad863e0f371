package signals

import (
	"math"
	"testing"
	"time"

	"finbot/internal/store"
	"finbot/internal/types"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func candlesFromCloses(closes []float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[i] = types.Candle{
			Date:  day(i),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
			Vol:   1000,
		}
	}
	return out
}

func maOnlyConfig() *store.Config {
	cfg := store.Default()
	cfg.Signals.Indicators = []string{"ma_cross"}
	cfg.Signals.MACross.ShortWindow = 2
	cfg.Signals.MACross.LongWindow = 3
	return cfg
}

func TestBuildNilWithoutCandles(t *testing.T) {
	if s := Build("AAPL", nil, store.Default()); s != nil {
		t.Error("Expected nil series for empty candle slice")
	}
}

func TestSignalLagsRawByOneDay(t *testing.T) {
	// Rising closes: once both SMAs exist the raw ma_cross score is +1.
	s := Build("AAPL", candlesFromCloses([]float64{10, 11, 12, 13, 14, 15}), maOnlyConfig())

	for i, row := range s.Rows {
		if i == 0 {
			if row.Sig != types.Hold {
				t.Errorf("Expected Hold on the first row, got %s", row.Sig)
			}
			if !math.IsNaN(row.Score) {
				t.Errorf("Expected NaN lagged score on the first row, got %f", row.Score)
			}
			continue
		}
		prev := s.Rows[i-1]
		if row.Sig != prev.RawSignal {
			t.Errorf("Row %d: expected lagged signal %s, got %s", i, prev.RawSignal, row.Sig)
		}
	}

	// The long SMA first exists at index 2, so raw turns Buy there and the
	// tradeable signal follows at index 3.
	if s.Rows[2].Sig != types.Hold {
		t.Errorf("Expected Hold at index 2, got %s", s.Rows[2].Sig)
	}
	if s.Rows[3].Sig != types.Buy {
		t.Errorf("Expected Buy at index 3, got %s", s.Rows[3].Sig)
	}
}

func TestWarmupRowsHold(t *testing.T) {
	s := Build("AAPL", candlesFromCloses([]float64{10, 11, 12}), maOnlyConfig())
	// Indices 0 and 1 have no complete long SMA; their raw scores are NaN.
	for i := 0; i < 2; i++ {
		if s.Rows[i].RawSignal != types.Hold {
			t.Errorf("Expected raw Hold during warmup at %d, got %s", i, s.Rows[i].RawSignal)
		}
	}
}

func TestDiscretizeStrictThresholds(t *testing.T) {
	cfg := store.Default()
	cfg.Signals.BuyThreshold = 0.3
	cfg.Signals.SellThreshold = -0.3

	cases := []struct {
		score float64
		want  types.Signal
	}{
		{0.31, types.Buy},
		{0.3, types.Hold},
		{0.0, types.Hold},
		{-0.3, types.Hold},
		{-0.31, types.Sell},
		{math.NaN(), types.Hold},
	}
	for _, c := range cases {
		if got := discretize(c.score, cfg); got != c.want {
			t.Errorf("discretize(%f): expected %s, got %s", c.score, c.want, got)
		}
	}
}

func TestCompositeSkipsNaN(t *testing.T) {
	scores := [][]float64{
		{math.NaN()},
		{0.5},
		{1.0},
	}
	if got := compositeAt(scores, 0); !almost(got, 0.75) {
		t.Errorf("Expected composite 0.75 ignoring NaN, got %f", got)
	}

	allNaN := [][]float64{{math.NaN()}, {math.NaN()}}
	if got := compositeAt(allNaN, 0); !math.IsNaN(got) {
		t.Errorf("Expected NaN composite when every indicator is NaN, got %f", got)
	}
}

func TestExecPriceIsOpen(t *testing.T) {
	candles := candlesFromCloses([]float64{10, 11, 12})
	candles[1].Open = 10.5
	s := Build("AAPL", candles, maOnlyConfig())
	if s.Rows[1].ExecPrice != 10.5 {
		t.Errorf("Expected exec price 10.5, got %f", s.Rows[1].ExecPrice)
	}
}

func TestRowLookupNormalizesToDay(t *testing.T) {
	s := Build("AAPL", candlesFromCloses([]float64{10, 11, 12}), maOnlyConfig())
	noon := day(1).Add(12 * time.Hour)
	row, ok := s.Row(noon)
	if !ok {
		t.Fatal("Expected a row for the traded date")
	}
	if !row.Date.Equal(day(1)) {
		t.Errorf("Expected row date %v, got %v", day(1), row.Date)
	}
	if _, ok := s.Row(day(99)); ok {
		t.Error("Expected no row for an untraded date")
	}
}

func TestUnionCalendarMergesAndSorts(t *testing.T) {
	cfg := maOnlyConfig()
	a := Build("A", candlesFromCloses([]float64{10, 11}), cfg)
	b := Build("B", []types.Candle{
		{Date: day(1), Open: 5, High: 6, Low: 4, Close: 5},
		{Date: day(2), Open: 5, High: 6, Low: 4, Close: 5},
	}, cfg)

	dates := UnionCalendar(map[string]*Series{"A": a, "B": b, "C": nil})
	if len(dates) != 3 {
		t.Fatalf("Expected 3 union dates, got %d", len(dates))
	}
	for i := range dates {
		if !dates[i].Equal(day(i)) {
			t.Errorf("Expected date %v at position %d, got %v", day(i), i, dates[i])
		}
	}
}

func TestBuyListForDateSorted(t *testing.T) {
	cfg := maOnlyConfig()
	rising := []float64{10, 11, 12, 13, 14, 15}
	series := map[string]*Series{
		"ZZZ": Build("ZZZ", candlesFromCloses(rising), cfg),
		"AAA": Build("AAA", candlesFromCloses(rising), cfg),
	}
	buys := BuyListForDate(series, day(4))
	if len(buys) != 2 {
		t.Fatalf("Expected 2 buys, got %d", len(buys))
	}
	if buys[0] != "AAA" || buys[1] != "ZZZ" {
		t.Errorf("Expected sorted tickers [AAA ZZZ], got %v", buys)
	}
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
