package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"finbot/internal/interfaces"
	"finbot/internal/logger"
	"finbot/internal/types"
)

const cacheDateLayout = "2006-01-02"

type cacheRow struct {
	Date  string  `csv:"Date"`
	Open  float64 `csv:"Open"`
	High  float64 `csv:"High"`
	Low   float64 `csv:"Low"`
	Close float64 `csv:"Close"`
	Vol   float64 `csv:"Vol"`
}

// CachedProvider decorates a provider with per-ticker CSV files. A cached file
// whose date span covers the request is served without touching the upstream;
// anything else refetches the full range and rewrites the file.
type CachedProvider struct {
	upstream interfaces.PriceProvider
	dir      string
}

// NewCachedProvider caches upstream responses under dir.
func NewCachedProvider(upstream interfaces.PriceProvider, dir string) *CachedProvider {
	return &CachedProvider{upstream: upstream, dir: dir}
}

func (p *CachedProvider) path(ticker string) string {
	return filepath.Join(p.dir, ticker+".csv")
}

// History serves from cache when the stored span covers [from, to], otherwise
// falls through to the upstream provider and refreshes the file.
func (p *CachedProvider) History(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	if cached, ok := p.readCovered(ctx, ticker, from, to); ok {
		return cached, nil
	}

	bars, err := p.upstream.History(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	if err := p.write(ticker, bars); err != nil {
		logger.Warn(ctx, "Failed to write price cache", "ticker", ticker, "error", err)
	}
	return bars, nil
}

// readCovered loads the ticker's cache file and reports whether it spans the
// requested range. The last needed day is to minus one day, matching a provider
// whose end bound is exclusive.
func (p *CachedProvider) readCovered(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, bool) {
	f, err := os.Open(p.path(ticker))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var rows []cacheRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil || len(rows) == 0 {
		return nil, false
	}

	first, err := time.Parse(cacheDateLayout, rows[0].Date)
	if err != nil {
		return nil, false
	}
	last, err := time.Parse(cacheDateLayout, rows[len(rows)-1].Date)
	if err != nil {
		return nil, false
	}
	lastNeeded := to.AddDate(0, 0, -1)
	if first.After(from) || last.Before(lastNeeded) {
		return nil, false
	}

	out := make([]types.Candle, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse(cacheDateLayout, r.Date)
		if err != nil {
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, types.Candle{Date: d, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Vol: r.Vol})
	}
	logger.Debug(ctx, "Price cache hit", "ticker", ticker, "bars", len(out))
	return out, true
}

func (p *CachedProvider) write(ticker string, bars []types.Candle) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	f, err := os.Create(p.path(ticker))
	if err != nil {
		return err
	}
	defer f.Close()

	rows := make([]cacheRow, 0, len(bars))
	for _, c := range bars {
		rows = append(rows, cacheRow{
			Date:  c.Date.Format(cacheDateLayout),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
			Vol:   c.Vol,
		})
	}
	return gocsv.MarshalFile(&rows, f)
}

// FetchAll pulls history for a whole universe. A ticker whose fetch fails is
// logged and dropped from the run; the simulation never aborts on a data gap.
func FetchAll(ctx context.Context, provider interfaces.PriceProvider, tickers []string, from, to time.Time) map[string][]types.Candle {
	out := make(map[string][]types.Candle, len(tickers))
	for _, ticker := range tickers {
		bars, err := provider.History(ctx, ticker, from, to)
		if err != nil {
			logger.Warn(ctx, "Dropping ticker after failed fetch", "ticker", ticker, "error", err)
			continue
		}
		if len(bars) == 0 {
			continue
		}
		out[ticker] = bars
	}
	return out
}
