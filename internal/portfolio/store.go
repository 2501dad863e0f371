package portfolio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"finbot/internal/logger"
	"finbot/internal/types"
)

// Four flat tables make up the persisted ledger. Dates are stored as ISO days so
// the files stay hand-readable and diff-able.
const (
	cashFile      = "cash.csv"
	positionsFile = "positions.csv"
	tradesFile    = "trades.csv"
	equityFile    = "equity.csv"

	dateLayout = "2006-01-02"
)

type cashRow struct {
	Cash float64 `csv:"Cash"`
}

type positionRow struct {
	Ticker     string  `csv:"Ticker"`
	Shares     int     `csv:"Shares"`
	EntryPrice float64 `csv:"EntryPrice"`
	StopLoss   float64 `csv:"StopLoss"`
	Target     float64 `csv:"Target"`
}

type tradeRow struct {
	Date   string  `csv:"Date"`
	Ticker string  `csv:"Ticker"`
	Side   string  `csv:"Side"`
	Price  float64 `csv:"Price"`
	Shares int     `csv:"Shares"`
	Fee    float64 `csv:"Fee"`
	Reason string  `csv:"Reason"`
}

type equityRow struct {
	Date     string  `csv:"Date"`
	Equity   float64 `csv:"Equity"`
	Cash     float64 `csv:"Cash"`
	PosValue float64 `csv:"PosValue"`
}

// Save writes the full ledger state into dir as the four CSV tables.
func Save(dir string, p *Portfolio) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	if err := writeCSV(filepath.Join(dir, cashFile), &[]cashRow{{Cash: p.cash}}); err != nil {
		return err
	}

	posRows := make([]positionRow, 0, len(p.positions))
	for _, pos := range p.Positions() {
		posRows = append(posRows, positionRow{
			Ticker:     pos.Ticker,
			Shares:     pos.Shares,
			EntryPrice: pos.EntryPrice,
			StopLoss:   pos.StopLoss,
			Target:     pos.Target,
		})
	}
	if err := writeCSV(filepath.Join(dir, positionsFile), &posRows); err != nil {
		return err
	}

	tradeRows := make([]tradeRow, 0, len(p.trades))
	for _, t := range p.trades {
		tradeRows = append(tradeRows, tradeRow{
			Date:   t.Date.Format(dateLayout),
			Ticker: t.Ticker,
			Side:   string(t.Side),
			Price:  t.Price,
			Shares: t.Shares,
			Fee:    t.Fee,
			Reason: string(t.Reason),
		})
	}
	if err := writeCSV(filepath.Join(dir, tradesFile), &tradeRows); err != nil {
		return err
	}

	eqRows := make([]equityRow, 0, len(p.equity))
	for _, e := range p.equity {
		eqRows = append(eqRows, equityRow{
			Date:     e.Date.Format(dateLayout),
			Equity:   e.Equity,
			Cash:     e.Cash,
			PosValue: e.PosValue,
		})
	}
	return writeCSV(filepath.Join(dir, equityFile), &eqRows)
}

// Load rebuilds a ledger from dir. Missing or unreadable tables are treated as
// "no prior state" for that table, never as a fatal error: an absent store yields
// a fresh portfolio with the configured starting cash.
func Load(ctx context.Context, dir string, startingCash float64, costs Costs) *Portfolio {
	p := New(startingCash, costs)

	var cashRows []cashRow
	if ok := readCSV(ctx, filepath.Join(dir, cashFile), &cashRows); ok && len(cashRows) > 0 {
		p.cash = cashRows[len(cashRows)-1].Cash
	}

	var posRows []positionRow
	if readCSV(ctx, filepath.Join(dir, positionsFile), &posRows) {
		for _, r := range posRows {
			if r.Shares <= 0 {
				continue
			}
			p.positions[r.Ticker] = types.Position{
				Ticker:     r.Ticker,
				Shares:     r.Shares,
				EntryPrice: r.EntryPrice,
				StopLoss:   r.StopLoss,
				Target:     r.Target,
			}
		}
	}

	var tradeRows []tradeRow
	if readCSV(ctx, filepath.Join(dir, tradesFile), &tradeRows) {
		for _, r := range tradeRows {
			p.trades = append(p.trades, types.Trade{
				Date:   parseDay(r.Date),
				Ticker: r.Ticker,
				Side:   types.Side(r.Side),
				Price:  r.Price,
				Shares: r.Shares,
				Fee:    r.Fee,
				Reason: types.Reason(r.Reason),
			})
		}
	}

	var eqRows []equityRow
	if readCSV(ctx, filepath.Join(dir, equityFile), &eqRows) {
		for _, r := range eqRows {
			p.equity = append(p.equity, types.EquitySnapshot{
				Date:     parseDay(r.Date),
				Equity:   r.Equity,
				Cash:     r.Cash,
				PosValue: r.PosValue,
			})
		}
	}

	return p
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readCSV loads rows from path, reporting false (and logging at debug) when the
// table is absent or corrupt.
func readCSV(ctx context.Context, path string, rows any) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, rows); err != nil {
		logger.Debug(ctx, "Skipping unreadable store table", "path", path, "error", err)
		return false
	}
	return true
}

func parseDay(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
