package exec

import (
	"context"
	"math"
	"testing"
	"time"

	"finbot/internal/portfolio"
	"finbot/internal/signals"
	"finbot/internal/store"
	"finbot/internal/types"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func rowSeries(ticker string, rows ...types.SignalRow) *signals.Series {
	return signals.NewSeries(ticker, rows)
}

func sigRow(date time.Time, sig types.Signal, score, open, close float64) types.SignalRow {
	return types.SignalRow{
		Date:      date,
		Open:      open,
		Close:     close,
		Sig:       sig,
		Score:     score,
		ExecPrice: open,
		ATR:       math.NaN(),
	}
}

func testConfig() *store.Config {
	cfg := store.Default()
	cfg.Backtest.TopNBuys = 3
	cfg.Backtest.AllocateEqualOnBuy = true
	cfg.Backtest.MaxDailyExposurePct = 1.0
	return cfg
}

func TestSellsFreeCashForSameDayBuys(t *testing.T) {
	series := map[string]*signals.Series{
		"OLD": rowSeries("OLD", sigRow(day0, types.Sell, -0.5, 100, 100)),
		"NEW": rowSeries("NEW", sigRow(day0, types.Buy, 0.5, 50, 50)),
	}

	port := portfolio.New(1000, portfolio.Costs{})
	port.Buy("OLD", 100, day0.AddDate(0, 0, -1), 1000, types.ReasonIndicator)
	if port.Cash() != 0 {
		t.Fatalf("Expected all cash deployed into OLD, have %f", port.Cash())
	}

	Advance(context.Background(), day0, series, port, testConfig())

	if port.IsLong("OLD") {
		t.Error("Expected the sell signal to close OLD")
	}
	if !port.IsLong("NEW") {
		t.Error("Expected the freed cash to fund the NEW buy")
	}
}

func TestTopNKeepsHighestScores(t *testing.T) {
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Buy, 0.9, 10, 10)),
		"B": rowSeries("B", sigRow(day0, types.Buy, 0.5, 10, 10)),
		"C": rowSeries("C", sigRow(day0, types.Buy, 0.8, 10, 10)),
	}

	cfg := testConfig()
	cfg.Backtest.TopNBuys = 2
	port := portfolio.New(1000, portfolio.Costs{})

	Advance(context.Background(), day0, series, port, cfg)

	if !port.IsLong("A") || !port.IsLong("C") {
		t.Errorf("Expected A and C kept, open: %v", port.OpenTickers())
	}
	if port.IsLong("B") {
		t.Error("Expected B dropped by the top-N cut")
	}
}

func TestTopNTieBreaksByTicker(t *testing.T) {
	series := map[string]*signals.Series{
		"ZZZ": rowSeries("ZZZ", sigRow(day0, types.Buy, 0.5, 10, 10)),
		"AAA": rowSeries("AAA", sigRow(day0, types.Buy, 0.5, 10, 10)),
	}

	cfg := testConfig()
	cfg.Backtest.TopNBuys = 1
	port := portfolio.New(1000, portfolio.Costs{})

	Advance(context.Background(), day0, series, port, cfg)

	if !port.IsLong("AAA") {
		t.Errorf("Expected the alphabetical tie-break to keep AAA, open: %v", port.OpenTickers())
	}
}

func TestEqualAllocationSplitsDeployableCash(t *testing.T) {
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Buy, 0.9, 100, 100)),
		"B": rowSeries("B", sigRow(day0, types.Buy, 0.5, 100, 100)),
	}

	port := portfolio.New(1000, portfolio.Costs{})
	Advance(context.Background(), day0, series, port, testConfig())

	for _, ticker := range []string{"A", "B"} {
		pos, ok := port.Position(ticker)
		if !ok {
			t.Fatalf("Expected a position in %s", ticker)
		}
		// 500 each at 100 buys 5 whole shares.
		if pos.Shares != 5 {
			t.Errorf("Expected 5 shares of %s, got %d", ticker, pos.Shares)
		}
	}
}

func TestScoreWeightedAllocation(t *testing.T) {
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Buy, 0.75, 1, 1)),
		"B": rowSeries("B", sigRow(day0, types.Buy, 0.25, 1, 1)),
	}

	cfg := testConfig()
	cfg.Backtest.AllocateEqualOnBuy = false
	port := portfolio.New(1000, portfolio.Costs{})

	Advance(context.Background(), day0, series, port, cfg)

	a, _ := port.Position("A")
	b, _ := port.Position("B")
	// Weights 0.75 and 0.25 of 1000 at price 1.
	if a.Shares != 750 {
		t.Errorf("Expected 750 shares of A, got %d", a.Shares)
	}
	if b.Shares != 250 {
		t.Errorf("Expected 250 shares of B, got %d", b.Shares)
	}
}

func TestExposureCapLimitsDeployableCash(t *testing.T) {
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Buy, 0.9, 10, 10)),
	}

	cfg := testConfig()
	cfg.Backtest.MaxDailyExposurePct = 0.5
	port := portfolio.New(1000, portfolio.Costs{})

	Advance(context.Background(), day0, series, port, cfg)

	pos, ok := port.Position("A")
	if !ok {
		t.Fatal("Expected a position in A")
	}
	// Half of 1000 at price 10.
	if pos.Shares != 50 {
		t.Errorf("Expected 50 shares under the exposure cap, got %d", pos.Shares)
	}
}

func TestTargetCheckedBeforeStop(t *testing.T) {
	// A close of 200 breaches the 115 target; the exit must book as a target
	// even though an extreme stop would also be breachable on a wide bar.
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Hold, 0, 200, 200)),
	}

	port := portfolio.New(10000, portfolio.Costs{StopPct: 0.08, TargetPct: 0.15})
	port.Buy("A", 100, day0.AddDate(0, 0, -1), 1000, types.ReasonIndicator)

	Advance(context.Background(), day0, series, port, testConfig())

	trades := port.Trades()
	last := trades[len(trades)-1]
	if last.Side != types.SideSell || last.Reason != types.ReasonTarget {
		t.Errorf("Expected a target exit, got %+v", last)
	}
}

func TestStopLossExitAtClose(t *testing.T) {
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Hold, 0, 80, 80)),
	}

	port := portfolio.New(10000, portfolio.Costs{StopPct: 0.08})
	port.Buy("A", 100, day0.AddDate(0, 0, -1), 1000, types.ReasonIndicator)

	Advance(context.Background(), day0, series, port, testConfig())

	if port.IsLong("A") {
		t.Error("Expected the stop to close the position")
	}
	trades := port.Trades()
	last := trades[len(trades)-1]
	if last.Reason != types.ReasonStopLoss {
		t.Errorf("Expected a stop-loss exit, got reason %s", last.Reason)
	}
	if last.Price != 80 {
		t.Errorf("Expected the exit priced at the close, got %f", last.Price)
	}
}

func TestBuySignalOnLongTickerIgnored(t *testing.T) {
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Buy, 0.9, 100, 100)),
	}

	port := portfolio.New(10000, portfolio.Costs{})
	port.Buy("A", 100, day0.AddDate(0, 0, -1), 1000, types.ReasonIndicator)
	before, _ := port.Position("A")

	Advance(context.Background(), day0, series, port, testConfig())

	after, _ := port.Position("A")
	if after.Shares != before.Shares {
		t.Errorf("Expected no add to an open position, shares %d -> %d", before.Shares, after.Shares)
	}
}

func TestAdvanceMarksEquityOncePerDate(t *testing.T) {
	series := map[string]*signals.Series{
		"A": rowSeries("A", sigRow(day0, types.Hold, 0, 100, 100)),
	}

	port := portfolio.New(1000, portfolio.Costs{})
	Advance(context.Background(), day0, series, port, testConfig())

	eq := port.Equity()
	if len(eq) != 1 {
		t.Fatalf("Expected 1 equity snapshot, got %d", len(eq))
	}
	if eq[0].Equity != 1000 {
		t.Errorf("Expected flat equity 1000, got %f", eq[0].Equity)
	}
}

func TestExecuteUserBuysSplitsCash(t *testing.T) {
	series := map[string]*signals.Series{
		"AAPL": rowSeries("AAPL", sigRow(day0, types.Hold, 0, 100, 100)),
		"MSFT": rowSeries("MSFT", sigRow(day0, types.Hold, 0, 50, 50)),
	}

	port := portfolio.New(1000, portfolio.Costs{})
	fills := ExecuteUserBuys(context.Background(), series, []string{" aapl ", "msft", "UNKNOWN"}, day0, port)

	if len(fills) != 2 {
		t.Fatalf("Expected 2 fills, got %d", len(fills))
	}
	a, _ := port.Position("AAPL")
	m, _ := port.Position("MSFT")
	if a.Shares != 5 || m.Shares != 10 {
		t.Errorf("Expected 5 AAPL and 10 MSFT shares, got %d and %d", a.Shares, m.Shares)
	}
	trades := port.Trades()
	for _, tr := range trades {
		if tr.Reason != types.ReasonUser {
			t.Errorf("Expected user reason on trade, got %s", tr.Reason)
		}
	}
}

func TestExecuteUserBuysUnknownTickerOnly(t *testing.T) {
	port := portfolio.New(1000, portfolio.Costs{})
	fills := ExecuteUserBuys(context.Background(), map[string]*signals.Series{}, []string{"NOPE"}, day0, port)
	if fills != nil {
		t.Errorf("Expected no fills, got %v", fills)
	}
	if port.Cash() != 1000 {
		t.Errorf("Expected cash untouched, got %f", port.Cash())
	}
}
